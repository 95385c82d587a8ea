package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "chat", "embed")
	embedder := NewEmbedder(client)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected bad gateway to be marked temporary, got %v", err)
	}
}

func TestEmbedSendsBatchInput(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	vectors, err := NewEmbedder(New(server.URL, "chat", "nomic")).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 || vectors[1][0] != float32(0.3) {
		t.Fatalf("unexpected vectors %v", vectors)
	}
	if payload["model"] != "nomic" {
		t.Fatalf("expected embed model in request, got %v", payload["model"])
	}
	if input, _ := payload["input"].([]any); len(input) != 2 {
		t.Fatalf("expected two inputs, got %v", payload["input"])
	}
}

func TestEmbedQueryRejectsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer server.Close()

	if _, err := NewEmbedder(New(server.URL, "chat", "embed")).EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatalf("expected error for empty embedding")
	}
}

func TestChatSessionDeclaresToolsAndReplaysHistory(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  Hello there  "},"done":true}`))
	}))
	defer server.Close()

	tools := []domain.ToolDescriptor{{
		Name:        domain.ToolBookInterview,
		Description: "Books an interview with the provided details.",
		Parameters: []domain.ToolParameter{
			{Name: "name", Type: "string", Description: "The name for the interview.", Required: true},
		},
	}}
	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Parts: "hi"},
		{Role: domain.RoleModel, Parts: "Assistant: hello"},
	}

	sess, err := NewChatModel(New(server.URL, "llama", "embed")).StartSession(context.Background(), history, tools)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	reply, err := sess.Send(context.Background(), "book me")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Text != "Hello there" || reply.Call != nil {
		t.Fatalf("unexpected reply %+v", reply)
	}

	if captured.Model != "llama" || captured.Stream {
		t.Fatalf("unexpected request header fields %+v", captured)
	}
	roles := []string{}
	for _, m := range captured.Messages {
		roles = append(roles, m.Role)
	}
	if strings.Join(roles, ",") != "system,user,assistant,user" {
		t.Fatalf("unexpected roles %v", roles)
	}
	if len(captured.Tools) != 1 || captured.Tools[0].Function.Name != domain.ToolBookInterview {
		t.Fatalf("expected book_interview declaration, got %+v", captured.Tools)
	}
	if got := captured.Tools[0].Function.Parameters.Required; len(got) != 1 || got[0] != "name" {
		t.Fatalf("expected required name, got %v", got)
	}
}

func TestChatSessionReturnsFunctionCallAndSendsToolResult(t *testing.T) {
	var requests []chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		requests = append(requests, req)
		if len(requests) == 1 {
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_current_time","arguments":{}}}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"It is noon."}}`))
	}))
	defer server.Close()

	sess, _ := NewChatModel(New(server.URL, "llama", "embed")).StartSession(context.Background(), nil, nil)
	reply, err := sess.Send(context.Background(), "what time is it?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Call == nil || reply.Call.Name != domain.ToolCurrentTime {
		t.Fatalf("expected function call, got %+v", reply)
	}

	reply, err = sess.SendToolResult(context.Background(), domain.ToolCurrentTime, domain.ToolResult{
		Payload: map[string]any{"current_time": "2026-10-15 12:00:00"},
	})
	if err != nil {
		t.Fatalf("SendToolResult() error = %v", err)
	}
	if reply.Text != "It is noon." {
		t.Fatalf("unexpected follow-up %+v", reply)
	}

	last := requests[1].Messages[len(requests[1].Messages)-1]
	if last.Role != "tool" || last.ToolName != domain.ToolCurrentTime {
		t.Fatalf("expected tool message last, got %+v", last)
	}
	if !strings.Contains(last.Content, `"current_time":"2026-10-15 12:00:00"`) {
		t.Fatalf("unexpected tool content %s", last.Content)
	}
	if strings.Contains(last.Content, "status") {
		t.Fatalf("status should be omitted when unset: %s", last.Content)
	}
}

func TestChatFailureIsModelUnresponsive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sess, _ := NewChatModel(New(server.URL, "llama", "embed")).StartSession(context.Background(), nil, nil)
	_, err := sess.Send(context.Background(), "hi")
	if !domain.IsKind(err, domain.ErrModelUnresponsive) {
		t.Fatalf("expected ErrModelUnresponsive, got %v", err)
	}
}
