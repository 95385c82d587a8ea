package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/interview-rag-assistant/internal/config"
	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/storage/localfs"
)

type idleQueue struct{}

func (idleQueue) PublishIngestionJob(context.Context, domain.IngestionJob) error { return nil }

func (idleQueue) SubscribeIngestionJobs(context.Context, func(context.Context, domain.IngestionJob) error) error {
	return nil
}

func newTestShared(t *testing.T) *shared {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unexpected database use: %v", err)
		}
		_ = db.Close()
	})
	storage, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}

	s := &shared{
		cfg: config.Config{
			OllamaURL:        "http://127.0.0.1:1",
			QdrantURL:        "http://127.0.0.1:1",
			QdrantCollection: "chunks",
			ChunkStrategy:    "char",
			ChunkSize:        500,
			ChunkOverlap:     50,
			RetrievalLimit:   5,
		},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		db:      db,
		storage: storage,
		queue:   idleQueue{},
	}
	s.connectModels()
	return s
}

func TestWorkerBuildsOnlyIngestion(t *testing.T) {
	app := newTestShared(t).worker()

	if app.Processor == nil || app.Ingestor == nil || app.Queue == nil {
		t.Fatalf("expected processor, ingestor and queue, got %+v", app)
	}
	if app.Chat != nil || app.Tools != nil || app.Uploader != nil || app.Interviews != nil {
		t.Fatalf("worker must not build chat, tools, uploads or interviews: %+v", app)
	}
}

func TestAPIBuildsServingComponents(t *testing.T) {
	app := newTestShared(t).api()

	if app.Chat == nil || app.Tools == nil || app.Uploader == nil || app.Interviews == nil || app.Ingestor == nil {
		t.Fatalf("expected serving components, got %+v", app)
	}
	if app.Processor != nil {
		t.Fatalf("api must not build the job processor")
	}
}
