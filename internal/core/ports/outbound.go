package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

// VectorIndex stores chunk texts and assigns their identifiers.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	InsertBatch(ctx context.Context, chunks []string) ([]domain.IndexedChunk, error)
	HybridSearch(ctx context.Context, query string, limit int) ([]string, error)
	DeleteChunks(ctx context.Context, ids []string) error
}

// ChunkStore persists the identifier to canonical text mapping.
type ChunkStore interface {
	AppendChunks(ctx context.Context, source string, chunks []domain.IndexedChunk) domain.Result
	LookupChunk(ctx context.Context, id string) (*domain.StoredChunk, error)
}

type InterviewStore interface {
	AppendInterview(ctx context.Context, booking domain.InterviewBooking) domain.Result
	ListInterviews(ctx context.Context) ([]domain.InterviewBooking, error)
}

// HistoryStore keeps serialized dialogue history per user. Version 0 means no stored history.
type HistoryStore interface {
	Load(ctx context.Context, userID string) ([]byte, int64, error)
	Save(ctx context.Context, userID string, payload []byte, expectedVersion int64) error
}

type ChatModel interface {
	StartSession(ctx context.Context, history []domain.ConversationTurn, tools []domain.ToolDescriptor) (ChatSession, error)
}

// ChatSession is one stateful exchange with the model.
type ChatSession interface {
	Send(ctx context.Context, message string) (domain.ModelReply, error)
	SendToolResult(ctx context.Context, name string, result domain.ToolResult) (domain.ModelReply, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Chunker interface {
	Chunk(text string, opts domain.ChunkingOptions) ([]string, error)
}

type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes and consumes document ingestion jobs.
type MessageQueue interface {
	PublishIngestionJob(ctx context.Context, job domain.IngestionJob) error
	SubscribeIngestionJobs(ctx context.Context, handler func(context.Context, domain.IngestionJob) error) error
}

type TextExtractor interface {
	Extract(ctx context.Context, job domain.IngestionJob) (string, error)
}

type Clock interface {
	Now() time.Time
}
