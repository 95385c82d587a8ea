package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "text"
	sparseVectorName = "text_lexical"
	textPayloadKey   = "text"

	defaultBatchSize      = 200
	defaultRetryBatchSize = 50
)

// DropObserver is told how many chunks were lost after the retry pass.
type DropObserver interface {
	ObserveDroppedChunks(n int)
}

type Options struct {
	BatchSize      int
	RetryBatchSize int
	HTTPClient     *http.Client
	Executor       *resilience.Executor
	Logger         *slog.Logger
	Drops          DropObserver
}

// Index is the hybrid (dense + sparse) chunk index backed by one Qdrant collection.
type Index struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
	executor   *resilience.Executor
	logger     *slog.Logger
	drops      DropObserver

	batchSize      int
	retryBatchSize int

	ensureMu   sync.Mutex
	ensured    bool
	vectorSize int
}

func New(baseURL, collection string, embedder ports.Embedder, opts Options) *Index {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	retryBatchSize := opts.RetryBatchSize
	if retryBatchSize <= 0 {
		retryBatchSize = defaultRetryBatchSize
	}
	return &Index{
		baseURL:        strings.TrimRight(baseURL, "/"),
		collection:     collection,
		httpClient:     httpClient,
		embedder:       embedder,
		executor:       opts.Executor,
		logger:         logger,
		drops:          opts.Drops,
		batchSize:      batchSize,
		retryBatchSize: retryBatchSize,
	}
}

// StatusError is a non-2xx answer from Qdrant.
type StatusError struct {
	Operation string
	Code      int
	Status    string
	Body      string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (e *StatusError) StatusCode() int { return e.Code }

// EnsureCollection creates the collection if absent. The dense vector size is probed from the embedder.
func (c *Index) EnsureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensured {
		return nil
	}

	if c.vectorSize == 0 {
		probe, err := c.embedder.EmbedQuery(ctx, "dimension probe")
		if err != nil {
			return domain.WrapError(domain.ErrStoreUnavailable, "qdrant ensure collection", fmt.Errorf("probe embedding size: %w", err))
		}
		if len(probe) == 0 {
			return domain.WrapError(domain.ErrStoreUnavailable, "qdrant ensure collection", errors.New("embedder returned empty vector"))
		}
		c.vectorSize = len(probe)
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     c.vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}

	err := c.executor.Execute(ctx, "qdrant.ensure_collection", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, "/collections/"+c.collection, reqBody, nil, "ensure collection")
	}, resilience.ClassifyHTTP)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "qdrant ensure collection", err)
	}
	c.ensured = true
	return nil
}

type pendingPoint struct {
	id   string
	text string
}

// InsertBatch assigns a fresh identifier to every chunk and upserts them in batches.
// Items of failed batches are retried once in smaller batches; items failing again are dropped.
func (c *Index) InsertBatch(ctx context.Context, chunks []string) ([]domain.IndexedChunk, error) {
	if len(chunks) == 0 {
		return []domain.IndexedChunk{}, nil
	}
	if err := c.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	pending := make([]pendingPoint, 0, len(chunks))
	for _, text := range chunks {
		pending = append(pending, pendingPoint{id: uuid.NewString(), text: text})
	}

	stored, failed, lastErr := c.upsertInBatches(ctx, pending, c.batchSize)
	if len(failed) > 0 {
		c.logger.Warn("vector_batch_retry", "collection", c.collection, "failed_items", len(failed), "retry_batch_size", c.retryBatchSize, "error", lastErr)

		var retried []domain.IndexedChunk
		retried, failed, lastErr = c.upsertInBatches(ctx, failed, c.retryBatchSize)
		stored = append(stored, retried...)
	}

	if len(failed) > 0 {
		c.logger.Warn("vector_insert_dropped", "collection", c.collection, "requested", len(chunks), "dropped", len(failed), "error", lastErr)
		if c.drops != nil {
			c.drops.ObserveDroppedChunks(len(failed))
		}
	}
	if len(stored) == 0 {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "qdrant insert batch", lastErr)
	}
	return stored, nil
}

func (c *Index) upsertInBatches(ctx context.Context, items []pendingPoint, size int) ([]domain.IndexedChunk, []pendingPoint, error) {
	stored := make([]domain.IndexedChunk, 0, len(items))
	var failed []pendingPoint
	var lastErr error

	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		if err := c.upsertBatch(ctx, batch); err != nil {
			if ctx.Err() != nil {
				failed = append(failed, items[start:]...)
				return stored, failed, err
			}
			lastErr = err
			failed = append(failed, batch...)
			continue
		}
		for _, p := range batch {
			stored = append(stored, domain.IndexedChunk{ID: p.id, Text: p.text})
		}
	}
	return stored, failed, lastErr
}

type point struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Index) upsertBatch(ctx context.Context, batch []pendingPoint) error {
	texts := make([]string, 0, len(batch))
	for _, p := range batch {
		texts = append(texts, p.text)
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(batch))
	}

	points := make([]point, 0, len(batch))
	for i, p := range batch {
		vector := map[string]any{denseVectorName: vectors[i]}
		if sparse := encodeSparseDocument(p.text); !sparse.empty() {
			vector[sparseVectorName] = sparse
		}
		points = append(points, point{
			ID:      p.id,
			Vector:  vector,
			Payload: map[string]any{textPayloadKey: p.text},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.executor.Execute(ctx, "qdrant.upsert", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
	}, resilience.ClassifyHTTP)
}

// HybridSearch fuses a dense and a sparse prefetch with reciprocal rank fusion and returns point ids by rank.
func (c *Index) HybridSearch(ctx context.Context, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []string{}, nil
	}

	dense, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "qdrant hybrid search", fmt.Errorf("embed query: %w", err))
	}

	candidates := limit * 3
	prefetch := []map[string]any{
		{"query": dense, "using": denseVectorName, "limit": candidates},
	}
	if sparse := encodeSparseQuery(query); !sparse.empty() {
		prefetch = append(prefetch, map[string]any{"query": sparse, "using": sparseVectorName, "limit": candidates})
	}
	reqBody := map[string]any{
		"prefetch":     prefetch,
		"query":        map[string]any{"fusion": "rrf"},
		"limit":        limit,
		"with_payload": false,
	}

	path := fmt.Sprintf("/collections/%s/points/query", c.collection)
	ids, err := resilience.Do(ctx, c.executor, "qdrant.query", func(callCtx context.Context) ([]string, error) {
		var resp queryResponse
		if err := c.doJSON(callCtx, http.MethodPost, path, reqBody, &resp, "query"); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(resp.Result.Points))
		for _, p := range resp.Result.Points {
			out = append(out, pointID(p.ID))
		}
		return out, nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreUnavailable, "qdrant hybrid search", err)
	}
	return ids, nil
}

type queryResponse struct {
	Result struct {
		Points []struct {
			ID    json.RawMessage `json:"id"`
			Score float64         `json:"score"`
		} `json:"points"`
	} `json:"result"`
}

// DeleteChunks removes points by id; used to compensate a failed relational write.
func (c *Index) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	err := c.executor.Execute(ctx, "qdrant.delete", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, path, map[string]any{"points": ids}, nil, "delete")
	}, resilience.ClassifyHTTP)
	if err != nil {
		return domain.WrapError(domain.ErrStoreUnavailable, "qdrant delete points", err)
	}
	return nil
}

func (c *Index) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Operation: operation, Code: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// pointID accepts both uuid and integer point ids.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
