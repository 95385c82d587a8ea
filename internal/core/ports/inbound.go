package ports

import (
	"context"
	"io"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

// DocumentUploader stores an uploaded file and queues it for ingestion.
type DocumentUploader interface {
	Upload(ctx context.Context, filename, mimeType string, opts domain.ChunkingOptions, body io.Reader) (*domain.IngestionJob, error)
}

// TextIngestor chunks and ingests raw text synchronously.
type TextIngestor interface {
	IngestText(ctx context.Context, source, text string, opts domain.ChunkingOptions) domain.IngestionReport
}

// JobProcessor runs a queued ingestion job.
type JobProcessor interface {
	Process(ctx context.Context, job domain.IngestionJob) (domain.IngestionReport, error)
}

type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string) (string, error)
}

// ChatService runs conversation turns and exposes stored history.
type ChatService interface {
	Chat(ctx context.Context, userID, message string) (*domain.ChatReply, error)
	History(ctx context.Context, userID string) ([]domain.ConversationTurn, error)
}

type InterviewReader interface {
	ListInterviews(ctx context.Context) ([]domain.InterviewBooking, error)
}

// ToolRunner exposes the tool registry to transports other than the chat loop.
type ToolRunner interface {
	Descriptors() []domain.ToolDescriptor
	Parse(name string, args map[string]any) (domain.ToolCall, error)
	Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error)
}
