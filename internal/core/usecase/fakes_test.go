package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

// memoryIndex assigns sequential ids and matches queries by substring.
type memoryIndex struct {
	mu        sync.Mutex
	next      int
	points    map[string]string
	order     []string
	dropLast  int
	insertErr error
	deleteErr error
	deleted   []string
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{points: map[string]string{}}
}

func (m *memoryIndex) EnsureCollection(context.Context) error { return nil }

func (m *memoryIndex) InsertBatch(_ context.Context, chunks []string) ([]domain.IndexedChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	keep := len(chunks) - m.dropLast
	out := make([]domain.IndexedChunk, 0, keep)
	for _, text := range chunks[:keep] {
		m.next++
		id := fmt.Sprintf("id-%d", m.next)
		m.points[id] = text
		m.order = append(m.order, id)
		out = append(out, domain.IndexedChunk{ID: id, Text: text})
	}
	return out, nil
}

func (m *memoryIndex) HybridSearch(_ context.Context, query string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, id := range m.order {
		text, ok := m.points[id]
		if ok && strings.Contains(text, query) {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *memoryIndex) DeleteChunks(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, id := range ids {
		delete(m.points, id)
	}
	m.deleted = append(m.deleted, ids...)
	return nil
}

type memoryChunkStore struct {
	mu        sync.Mutex
	rows      []domain.StoredChunk
	appendErr error
	lookupErr error
}

func (s *memoryChunkStore) AppendChunks(_ context.Context, source string, chunks []domain.IndexedChunk) domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return domain.FailedWith(domain.ErrStoreUnavailable, s.appendErr)
	}
	for _, chunk := range chunks {
		s.rows = append(s.rows, domain.StoredChunk{
			RowID:    int64(len(s.rows) + 1),
			SourceID: source,
			ChunkID:  chunk.ID,
			Text:     chunk.Text,
		})
	}
	return domain.Succeeded(fmt.Sprintf("stored %d chunks for %s", len(chunks), source))
}

func (s *memoryChunkStore) LookupChunk(_ context.Context, id string) (*domain.StoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	for _, row := range s.rows {
		if row.ChunkID == id {
			copyRow := row
			return &copyRow, nil
		}
	}
	return nil, nil
}

type memoryInterviewStore struct {
	bookings  []domain.InterviewBooking
	appendErr error
}

func (s *memoryInterviewStore) AppendInterview(_ context.Context, booking domain.InterviewBooking) domain.Result {
	if s.appendErr != nil {
		return domain.FailedWith(domain.ErrStoreUnavailable, s.appendErr)
	}
	booking.RowID = int64(len(s.bookings) + 1)
	s.bookings = append(s.bookings, booking)
	return domain.Succeeded("interview stored")
}

func (s *memoryInterviewStore) ListInterviews(context.Context) ([]domain.InterviewBooking, error) {
	return s.bookings, nil
}

type memoryHistoryStore struct {
	mu        sync.Mutex
	payloads  map[string][]byte
	versions  map[string]int64
	conflicts int
	saves     int
}

func newMemoryHistoryStore() *memoryHistoryStore {
	return &memoryHistoryStore{payloads: map[string][]byte{}, versions: map[string]int64{}}
}

func (s *memoryHistoryStore) Load(_ context.Context, userID string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payloads[userID], s.versions[userID], nil
}

func (s *memoryHistoryStore) Save(_ context.Context, userID string, payload []byte, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		// Simulate another writer landing first.
		s.conflicts--
		s.versions[userID]++
		return domain.ErrHistoryConflict
	}
	if s.versions[userID] != expected {
		return domain.ErrHistoryConflict
	}
	s.payloads[userID] = payload
	s.versions[userID] = expected + 1
	s.saves++
	return nil
}

// scriptedModel replays canned replies in order, one per Send/SendToolResult.
type scriptedModel struct {
	replies     []domain.ModelReply
	sendErr     error
	history     []domain.ConversationTurn
	tools       []domain.ToolDescriptor
	toolResults []domain.ToolResult
	calls       int
}

func (m *scriptedModel) StartSession(_ context.Context, history []domain.ConversationTurn, tools []domain.ToolDescriptor) (ports.ChatSession, error) {
	m.history = history
	m.tools = tools
	return m, nil
}

func (m *scriptedModel) Send(context.Context, string) (domain.ModelReply, error) {
	return m.next()
}

func (m *scriptedModel) SendToolResult(_ context.Context, _ string, result domain.ToolResult) (domain.ModelReply, error) {
	m.toolResults = append(m.toolResults, result)
	return m.next()
}

func (m *scriptedModel) next() (domain.ModelReply, error) {
	if m.sendErr != nil {
		return domain.ModelReply{}, m.sendErr
	}
	if m.calls >= len(m.replies) {
		return domain.ModelReply{}, errors.New("script exhausted")
	}
	reply := m.replies[m.calls]
	m.calls++
	return reply, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubRetriever struct {
	text string
	err  error
}

func (s stubRetriever) RetrieveContext(context.Context, string) (string, error) {
	return s.text, s.err
}

type memoryObjectStorage struct {
	files map[string]string
	err   error
}

func (s *memoryObjectStorage) Save(_ context.Context, key string, data io.Reader) error {
	if s.err != nil {
		return s.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.files[key] = string(raw)
	return nil
}

func (s *memoryObjectStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := s.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type recordingQueue struct {
	jobs []domain.IngestionJob
	err  error
}

func (q *recordingQueue) PublishIngestionJob(_ context.Context, job domain.IngestionJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) SubscribeIngestionJobs(context.Context, func(context.Context, domain.IngestionJob) error) error {
	return errors.New("not implemented")
}
