package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
}

type chatToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Parameters  domain.ParametersSchema `json:"parameters"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []toolSpec    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// ChatModel opens tool-enabled sessions against /api/chat.
type ChatModel struct {
	client *Client
}

func NewChatModel(client *Client) *ChatModel {
	return &ChatModel{client: client}
}

func (m *ChatModel) StartSession(_ context.Context, history []domain.ConversationTurn, tools []domain.ToolDescriptor) (ports.ChatSession, error) {
	return &session{
		client:   m.client,
		messages: historyMessages(history),
		tools:    buildToolSpecs(tools),
	}, nil
}

// session keeps the running message list; Ollama is stateless so every call resends it.
type session struct {
	client   *Client
	messages []chatMessage
	tools    []toolSpec
}

func (s *session) Send(ctx context.Context, message string) (domain.ModelReply, error) {
	s.messages = append(s.messages, chatMessage{Role: "user", Content: message})
	return s.exchange(ctx)
}

func (s *session) SendToolResult(ctx context.Context, name string, result domain.ToolResult) (domain.ModelReply, error) {
	content, err := json.Marshal(result.Document())
	if err != nil {
		return domain.ModelReply{}, fmt.Errorf("marshal tool result: %w", err)
	}
	s.messages = append(s.messages, chatMessage{Role: "tool", Content: string(content), ToolName: name})
	return s.exchange(ctx)
}

func (s *session) exchange(ctx context.Context) (domain.ModelReply, error) {
	request := chatRequest{
		Model:    s.client.chatModel,
		Messages: s.messages,
		Tools:    s.tools,
		Stream:   false,
	}

	var response chatResponse
	if err := s.client.call(ctx, "/api/chat", request, &response, "chat"); err != nil {
		return domain.ModelReply{}, domain.WrapError(domain.ErrModelUnresponsive, "ollama chat", err)
	}

	msg := response.Message
	if msg.Role == "" {
		msg.Role = "assistant"
	}
	s.messages = append(s.messages, msg)

	reply := domain.ModelReply{Text: strings.TrimSpace(msg.Content)}
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0].Function
		args := call.Arguments
		if args == nil {
			args = map[string]any{}
		}
		reply.Call = &domain.FunctionCall{Name: call.Name, Arguments: args}
	}
	return reply, nil
}
