package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/observability/metrics"
)

type fakeUploader struct {
	err      error
	filename string
	opts     domain.ChunkingOptions
	body     string
}

func (f *fakeUploader) Upload(_ context.Context, filename, _ string, opts domain.ChunkingOptions, body io.Reader) (*domain.IngestionJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := io.ReadAll(body)
	f.filename = filename
	f.opts = opts
	f.body = string(raw)
	return &domain.IngestionJob{ID: "job-1", Source: filename, StorageKey: "job-1_" + filename, Chunking: opts}, nil
}

type fakeIngestor struct {
	report domain.IngestionReport
	source string
}

func (f *fakeIngestor) IngestText(_ context.Context, source, _ string, _ domain.ChunkingOptions) domain.IngestionReport {
	f.source = source
	return f.report
}

type fakeChat struct {
	reply   *domain.ChatReply
	err     error
	history []domain.ConversationTurn
	histErr error
}

func (f *fakeChat) Chat(_ context.Context, userID, _ string) (*domain.ChatReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	reply := *f.reply
	reply.UserID = userID
	return &reply, nil
}

func (f *fakeChat) History(_ context.Context, _ string) ([]domain.ConversationTurn, error) {
	return f.history, f.histErr
}

type fakeInterviews struct {
	items []domain.InterviewBooking
	err   error
}

func (f *fakeInterviews) ListInterviews(context.Context) ([]domain.InterviewBooking, error) {
	return f.items, f.err
}

func newTestRouter(opts RouterOptions) http.Handler {
	if opts.Uploader == nil {
		opts.Uploader = &fakeUploader{}
	}
	if opts.Ingestor == nil {
		opts.Ingestor = &fakeIngestor{report: domain.IngestionReport{Result: domain.Succeeded("ok")}}
	}
	if opts.Chat == nil {
		opts.Chat = &fakeChat{reply: &domain.ChatReply{Response: "Assistant: hi", Outcome: "text"}}
	}
	if opts.Interviews == nil {
		opts.Interviews = &fakeInterviews{}
	}
	return NewRouter(opts).Handler()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthzSetsRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocumentQueuesJob(t *testing.T) {
	uploader := &fakeUploader{}
	handler := newTestRouter(RouterOptions{Uploader: uploader})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = part.Write([]byte("interview notes"))
	_ = mw.WriteField("strategy", "sentence")
	_ = mw.WriteField("chunk_size", "300")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if uploader.filename != "notes.txt" || uploader.body != "interview notes" {
		t.Fatalf("unexpected upload %+v", uploader)
	}
	if uploader.opts.Strategy != "sentence" || uploader.opts.ChunkSize != 300 {
		t.Fatalf("expected chunking options from form, got %+v", uploader.opts)
	}
	if body := decodeBody(t, rec); body["id"] != "job-1" {
		t.Fatalf("unexpected job body %v", body)
	}
}

func TestUploadDocumentRejectsBadChunkSize(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = part.Write([]byte("x"))
	_ = mw.WriteField("chunk_size", "big")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUploadDocumentRequiresFile(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("nope"))
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUploadDocumentMapsUnsupportedType(t *testing.T) {
	uploader := &fakeUploader{err: domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("unsupported document type: a.exe"))}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "a.exe")
	_, _ = part.Write([]byte("MZ"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{Uploader: uploader}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestTextReturnsReport(t *testing.T) {
	ingestor := &fakeIngestor{report: domain.IngestionReport{Result: domain.Succeeded("stored 3 chunks"), Source: "cv", Requested: 3, Stored: 3}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(`{"source":"cv","text":"hello world"}`))
	newTestRouter(RouterOptions{Ingestor: ingestor}).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ok"] != true || body["stored"] != float64(3) || ingestor.source != "cv" {
		t.Fatalf("unexpected report %v", body)
	}
}

func TestIngestTextMapsFailureKind(t *testing.T) {
	tests := []struct {
		name   string
		kind   error
		status int
	}{
		{name: "bad window", kind: domain.ErrInvalidConfiguration, status: http.StatusBadRequest},
		{name: "strategy", kind: domain.ErrUnsupportedStrategy, status: http.StatusBadRequest},
		{name: "store", kind: domain.ErrStoreUnavailable, status: http.StatusServiceUnavailable},
		{name: "partial", kind: domain.ErrPartialIngestion, status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ingestor := &fakeIngestor{report: domain.IngestionReport{Result: domain.Failed(tc.kind, "boom")}}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(`{"text":"x"}`))
			newTestRouter(RouterOptions{Ingestor: ingestor}).ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if body := decodeBody(t, rec); body["ok"] != false || body["message"] != "boom" {
				t.Fatalf("unexpected failure body %v", body)
			}
		})
	}
}

func TestIngestTextRequiresText(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(`{"source":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatReturnsReplyAndRecordsOutcome(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api")
	chat := &fakeChat{reply: &domain.ChatReply{Response: "Interview booked.", Tool: domain.ToolBookInterview, Outcome: "tool"}}
	handler := newTestRouter(RouterOptions{Chat: chat, Metrics: m})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"user_id":"u1","message":"book me"}`)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["user_id"] != "u1" || body["tool"] != domain.ToolBookInterview || body["response"] != "Interview booked." {
		t.Fatalf("unexpected chat body %v", body)
	}
	if _, ok := body["Outcome"]; ok {
		t.Fatalf("outcome must not be serialized")
	}

	scrape := httptest.NewRecorder()
	handler.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), `ira_chat_turns_total{outcome="tool",service="api"} 1`) {
		t.Fatalf("expected chat turn metric, got:\n%s", scrape.Body.String())
	}
}

func TestChatMapsErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("user_id is required")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrModelUnresponsive, "chat", errors.New("timeout")), http.StatusBadGateway},
		{domain.WrapError(domain.ErrHistoryConflict, "chat", errors.New("stale")), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		handler := newTestRouter(RouterOptions{Chat: &fakeChat{err: tc.err}})
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"user_id":"u","message":"m"}`)))
		if rec.Code != tc.status {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
	}
}

func TestChatHistory(t *testing.T) {
	chat := &fakeChat{history: []domain.ConversationTurn{
		{Role: domain.RoleUser, Parts: "hi"},
		{Role: domain.RoleModel, Parts: "Assistant: hello"},
	}}
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{Chat: chat}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/history?user_id=u1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	history, _ := body["history"].([]any)
	if body["user_id"] != "u1" || len(history) != 2 {
		t.Fatalf("unexpected history body %v", body)
	}
}

func TestChatHistoryNotFound(t *testing.T) {
	chat := &fakeChat{histErr: domain.WrapError(domain.ErrNotFound, "chat history", errors.New("no history for u1"))}
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{Chat: chat}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/history?user_id=u1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != historyNotFoundMessage {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestListInterviews(t *testing.T) {
	interviews := &fakeInterviews{items: []domain.InterviewBooking{{RowID: 1, CandidateName: "Jane", Date: "2026-01-02", Time: "10:00"}}}
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{Interviews: interviews}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/interviews", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	items, _ := decodeBody(t, rec)["interviews"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one interview, got %v", items)
	}
}

func TestListInterviewsEmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/interviews", nil))
	if !strings.Contains(rec.Body.String(), `"interviews":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	for _, path := range []string{"/v1/documents", "/v1/ingest", "/v1/chat"} {
		rec := httptest.NewRecorder()
		newTestRouter(RouterOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, rec.Code)
		}
	}
}

func TestMCPHandlerMounted(t *testing.T) {
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	newTestRouter(RouterOptions{MCP: mcp}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected request routed to MCP handler, got %d", rec.Code)
	}
}
