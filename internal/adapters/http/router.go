package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
	"github.com/kirillkom/interview-rag-assistant/internal/observability/metrics"
)

const (
	serviceName = "api"

	defaultMaxUploadBytes   = 64 << 20
	defaultBackpressureWait = 250 * time.Millisecond

	historyNotFoundMessage = "No chat history found for this user."
)

type RouterOptions struct {
	Uploader   ports.DocumentUploader
	Ingestor   ports.TextIngestor
	Chat       ports.ChatService
	Interviews ports.InterviewReader
	MCP        http.Handler
	Metrics    *metrics.HTTPServerMetrics
	Logger     *slog.Logger

	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	MaxUploadBytes   int64
}

type Router struct {
	uploader   ports.DocumentUploader
	ingestor   ports.TextIngestor
	chat       ports.ChatService
	interviews ports.InterviewReader
	mcp        http.Handler
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger

	limiter          *rate.Limiter
	maxInFlight      int
	backpressureWait time.Duration
	maxUploadBytes   int64
}

func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	wait := opts.BackpressureWait
	if wait <= 0 {
		wait = defaultBackpressureWait
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Router{
		uploader:         opts.Uploader,
		ingestor:         opts.Ingestor,
		chat:             opts.Chat,
		interviews:       opts.Interviews,
		mcp:              opts.MCP,
		metrics:          opts.Metrics,
		logger:           logger,
		limiter:          limiter,
		maxInFlight:      opts.MaxInFlight,
		backpressureWait: wait,
		maxUploadBytes:   maxUpload,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/ingest", rt.ingestText)
	mux.HandleFunc("/v1/chat", rt.chatTurn)
	mux.HandleFunc("/v1/chat/history", rt.chatHistory)
	mux.HandleFunc("/v1/interviews", rt.listInterviews)
	if rt.mcp != nil {
		mux.Handle("/mcp", rt.mcp)
	}

	var onLimited func(string)
	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		onLimited = rt.metrics.RecordRateLimited
	}
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.limiter, onLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "document is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	opts, err := chunkingFromForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := rt.uploader.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		opts,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func chunkingFromForm(r *http.Request) (domain.ChunkingOptions, error) {
	opts := domain.ChunkingOptions{Strategy: strings.TrimSpace(r.FormValue("strategy"))}
	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"chunk_size", &opts.ChunkSize},
		{"overlap", &opts.Overlap},
	} {
		raw := strings.TrimSpace(r.FormValue(field.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.ChunkingOptions{}, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New(field.name+" must be an integer"))
		}
		*field.dst = n
	}
	return opts, nil
}

func (rt *Router) ingestText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Source    string `json:"source"`
		Text      string `json:"text"`
		Strategy  string `json:"strategy"`
		ChunkSize int    `json:"chunk_size"`
		Overlap   int    `json:"overlap"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	report := rt.ingestor.IngestText(r.Context(), req.Source, req.Text, domain.ChunkingOptions{
		Strategy:  req.Strategy,
		ChunkSize: req.ChunkSize,
		Overlap:   req.Overlap,
	})
	if rt.metrics != nil {
		rt.metrics.RecordIngestion(report)
	}
	if !report.OK {
		writeJSON(w, mapErrorToHTTPStatus(report.Err()), report)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	reply, err := rt.chat.Chat(r.Context(), req.UserID, req.Message)
	if err != nil {
		rt.recordChatTurn("error", start)
		rt.logger.Warn("chat_turn_failed", "request_id", requestIDFromContext(r.Context()), "user_id", req.UserID, "error", err)
		writeError(w, err)
		return
	}
	rt.recordChatTurn(reply.Outcome, start)

	writeJSON(w, http.StatusCreated, reply)
}

func (rt *Router) recordChatTurn(outcome string, start time.Time) {
	if rt.metrics != nil {
		rt.metrics.RecordChatTurn(outcome, time.Since(start))
	}
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	history, err := rt.chat.History(r.Context(), userID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": historyNotFoundMessage})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"history": history,
	})
}

func (rt *Router) listInterviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	interviews, err := rt.interviews.ListInterviews(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if interviews == nil {
		interviews = []domain.InterviewBooking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"interviews": interviews})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
