package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

const (
	replyPrefix = "Assistant: "

	replyMissingInformation = "I couldn't process your request due to missing information. Can you please provide all the details?"
	replyNoResponse         = "I couldn't generate a response. Please try again."
	replyUnknownToolFormat  = "I'm sorry, I don't have a tool to perform the action '%s'."

	defaultHistoryAttempts = 3
)

// Turn outcomes reported on ChatReply.Outcome.
const (
	OutcomeText        = "text"
	OutcomeTool        = "tool"
	OutcomeUnknownTool = "unknown_tool"
	OutcomeArgument    = "argument_error"
	OutcomeNoResponse  = "no_response"
	OutcomeToolLoop    = "tool_loop_rejected"
)

// ToolObserver is told about every executed tool call.
type ToolObserver interface {
	RecordToolCall(tool, status string)
}

type ChatOptions struct {
	HistoryAttempts int
	TurnTimeout     time.Duration
	Logger          *slog.Logger
	Observer        ToolObserver
}

// ChatUseCase runs one user turn: model call, at most one tool round trip, history write.
type ChatUseCase struct {
	model    ports.ChatModel
	tools    ports.ToolRunner
	history  ports.HistoryStore
	locks    *keyedMutex
	attempts int
	timeout  time.Duration
	logger   *slog.Logger
	observer ToolObserver
}

func NewChatUseCase(
	model ports.ChatModel,
	tools ports.ToolRunner,
	history ports.HistoryStore,
	opts ChatOptions,
) *ChatUseCase {
	attempts := opts.HistoryAttempts
	if attempts <= 0 {
		attempts = defaultHistoryAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		model:    model,
		tools:    tools,
		history:  history,
		locks:    newKeyedMutex(),
		attempts: attempts,
		timeout:  opts.TurnTimeout,
		logger:   logger,
		observer: opts.Observer,
	}
}

func (uc *ChatUseCase) Chat(ctx context.Context, userID, message string) (*domain.ChatReply, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("user_id is required"))
	}
	if strings.TrimSpace(message) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message is required"))
	}

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	unlock, err := uc.locks.Lock(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "chat", fmt.Errorf("wait for previous turn: %w", err))
	}
	defer unlock()

	raw, version, err := uc.history.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	turns := domain.DecodeHistory(raw)

	reply, err := uc.runTurn(ctx, turns, message)
	if err != nil {
		return nil, err
	}
	reply.UserID = userID

	exchange := []domain.ConversationTurn{
		{Role: domain.RoleUser, Parts: message},
		{Role: domain.RoleModel, Parts: reply.Response},
	}
	if err := uc.persist(ctx, userID, turns, version, exchange); err != nil {
		return nil, err
	}
	return reply, nil
}

// persist writes the exchange with a version check. On conflict the exchange is
// re-applied onto freshly loaded history; the model is not asked again.
func (uc *ChatUseCase) persist(ctx context.Context, userID string, turns []domain.ConversationTurn, version int64, exchange []domain.ConversationTurn) error {
	for attempt := 1; ; attempt++ {
		updated := make([]domain.ConversationTurn, 0, len(turns)+len(exchange))
		updated = append(updated, turns...)
		updated = append(updated, exchange...)

		payload, err := domain.EncodeHistory(updated)
		if err != nil {
			return fmt.Errorf("encode chat history: %w", err)
		}

		err = uc.history.Save(ctx, userID, payload, version)
		if err == nil {
			return nil
		}
		if !domain.IsKind(err, domain.ErrHistoryConflict) || attempt >= uc.attempts {
			return fmt.Errorf("save chat history: %w", err)
		}

		uc.logger.Warn("chat_history_conflict", "user_id", userID, "attempt", attempt, "expected_version", version)
		raw, fresh, err := uc.history.Load(ctx, userID)
		if err != nil {
			return fmt.Errorf("reload chat history: %w", err)
		}
		turns, version = domain.DecodeHistory(raw), fresh
	}
}

func (uc *ChatUseCase) runTurn(ctx context.Context, turns []domain.ConversationTurn, message string) (*domain.ChatReply, error) {
	session, err := uc.model.StartSession(ctx, turns, uc.tools.Descriptors())
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelUnresponsive, "start chat session", err)
	}

	first, err := session.Send(ctx, message)
	if err != nil {
		return nil, wrapModelError("send message", err)
	}

	if first.Call == nil {
		if first.Text == "" {
			return &domain.ChatReply{Response: replyPrefix + replyNoResponse, Outcome: OutcomeNoResponse}, nil
		}
		return &domain.ChatReply{Response: replyPrefix + first.Text, Outcome: OutcomeText}, nil
	}
	return uc.dispatch(ctx, session, *first.Call)
}

func (uc *ChatUseCase) dispatch(ctx context.Context, session ports.ChatSession, fc domain.FunctionCall) (*domain.ChatReply, error) {
	call, err := uc.tools.Parse(fc.Name, fc.Arguments)
	switch {
	case domain.IsKind(err, domain.ErrUnknownTool):
		uc.logger.Warn("tool_unknown", "tool", fc.Name)
		return &domain.ChatReply{
			Response: replyPrefix + fmt.Sprintf(replyUnknownToolFormat, fc.Name),
			Outcome:  OutcomeUnknownTool,
		}, nil
	case err != nil:
		uc.logger.Warn("tool_arguments_invalid", "tool", fc.Name, "error", err)
		return &domain.ChatReply{
			Response: replyPrefix + replyMissingInformation,
			Tool:     fc.Name,
			Outcome:  OutcomeArgument,
		}, nil
	}

	result, err := uc.tools.Execute(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("execute tool %s: %w", fc.Name, err)
	}
	status := result.Status
	if status == "" {
		status = domain.ToolStatusSuccess
	}
	uc.logger.Info("tool_dispatch", "tool", fc.Name, "status", status)
	if uc.observer != nil {
		uc.observer.RecordToolCall(fc.Name, status)
	}

	follow, err := session.SendToolResult(ctx, fc.Name, result)
	if err != nil {
		return nil, wrapModelError("send tool result", err)
	}

	reply := &domain.ChatReply{Tool: fc.Name, Outcome: OutcomeTool}
	switch {
	case follow.Call != nil:
		uc.logger.Warn("tool_loop_rejected", "tool", fc.Name, "next_tool", follow.Call.Name)
		reply.Response = replyPrefix + replyNoResponse
		reply.Outcome = OutcomeToolLoop
	case follow.Text == "":
		reply.Response = replyPrefix + replyNoResponse
		reply.Outcome = OutcomeNoResponse
	default:
		reply.Response = follow.Text
	}
	return reply, nil
}

func (uc *ChatUseCase) History(ctx context.Context, userID string) ([]domain.ConversationTurn, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat history", errors.New("user_id is required"))
	}
	raw, version, err := uc.history.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	if version == 0 && len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "chat history", fmt.Errorf("no history for %s", userID))
	}
	return domain.DecodeHistory(raw), nil
}

func wrapModelError(op string, err error) error {
	if domain.IsKind(err, domain.ErrModelUnresponsive) {
		return err
	}
	return domain.WrapError(domain.ErrModelUnresponsive, op, err)
}
