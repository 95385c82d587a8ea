package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/core/ports"
)

const currentTimeLayout = "2006-01-02 15:04:05"

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock used outside tests.
var SystemClock ports.Clock = systemClock{}

// toolSpec builds a ToolDescriptor declaratively.
type toolSpec struct {
	descriptor domain.ToolDescriptor
}

func newToolSpec(name string) *toolSpec {
	return &toolSpec{descriptor: domain.ToolDescriptor{Name: name, Parameters: []domain.ToolParameter{}}}
}

func (s *toolSpec) describe(text string) *toolSpec {
	s.descriptor.Description = text
	return s
}

// param declares a required string parameter with the stock description.
func (s *toolSpec) param(name string) *toolSpec {
	return s.paramWith(name, fmt.Sprintf("The %s for the interview.", name))
}

func (s *toolSpec) paramWith(name, description string) *toolSpec {
	s.descriptor.Parameters = append(s.descriptor.Parameters, domain.ToolParameter{
		Name:        name,
		Type:        "string",
		Description: description,
		Required:    true,
	})
	return s
}

func (s *toolSpec) build() domain.ToolDescriptor {
	return s.descriptor
}

// ToolRegistry holds the fixed set of local operations the model may call.
type ToolRegistry struct {
	interviews ports.InterviewStore
	retriever  ports.ContextRetriever
	clock      ports.Clock

	descriptors []domain.ToolDescriptor
	byName      map[string]domain.ToolDescriptor
}

func NewToolRegistry(interviews ports.InterviewStore, retriever ports.ContextRetriever, clock ports.Clock) *ToolRegistry {
	if clock == nil {
		clock = SystemClock
	}
	descriptors := []domain.ToolDescriptor{
		newToolSpec(domain.ToolBookInterview).
			describe("Books an interview with the provided details.").
			param("name").
			param("email").
			param("date").
			param("time").
			build(),
		newToolSpec(domain.ToolPastSchedules).
			describe("Retrieves and returns a list of past interview schedules.").
			build(),
		newToolSpec(domain.ToolCurrentTime).
			describe("Returns the current date and time.").
			build(),
		newToolSpec(domain.ToolRetrieveContext).
			describe("Searches the ingested documents and returns the passages most relevant to the query.").
			paramWith("user_query", "The question or keywords to search the documents for.").
			build(),
	}

	byName := make(map[string]domain.ToolDescriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name] = d
	}
	return &ToolRegistry{
		interviews:  interviews,
		retriever:   retriever,
		clock:       clock,
		descriptors: descriptors,
		byName:      byName,
	}
}

// Descriptors returns a copy of the declarations in registration order.
func (r *ToolRegistry) Descriptors() []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, cloneDescriptor(d))
	}
	return out
}

func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *ToolRegistry) Describe(name string) (domain.ToolDescriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return domain.ToolDescriptor{}, domain.WrapError(domain.ErrUnknownTool, "describe tool", fmt.Errorf("%q", name))
	}
	return cloneDescriptor(d), nil
}

func cloneDescriptor(d domain.ToolDescriptor) domain.ToolDescriptor {
	params := make([]domain.ToolParameter, len(d.Parameters))
	copy(params, d.Parameters)
	d.Parameters = params
	return d
}

// Parse validates a model-issued call against the declared parameters and returns its typed variant.
func (r *ToolRegistry) Parse(name string, args map[string]any) (domain.ToolCall, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnknownTool, "parse tool call", fmt.Errorf("%q", name))
	}

	values := make(map[string]string, len(d.Parameters))
	for _, p := range d.Parameters {
		raw, present := args[p.Name]
		if !present || raw == nil {
			if p.Required {
				return nil, domain.WrapError(domain.ErrArgument, name, fmt.Errorf("missing argument %q", p.Name))
			}
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return nil, domain.WrapError(domain.ErrArgument, name, fmt.Errorf("argument %q must be a string, got %T", p.Name, raw))
		}
		if p.Required && strings.TrimSpace(s) == "" {
			return nil, domain.WrapError(domain.ErrArgument, name, fmt.Errorf("argument %q is empty", p.Name))
		}
		values[p.Name] = s
	}
	for k := range args {
		if !declares(d, k) {
			return nil, domain.WrapError(domain.ErrArgument, name, fmt.Errorf("unexpected argument %q", k))
		}
	}

	switch name {
	case domain.ToolBookInterview:
		return domain.BookInterviewCall{
			Name:  values["name"],
			Email: values["email"],
			Date:  values["date"],
			Time:  values["time"],
		}, nil
	case domain.ToolPastSchedules:
		return domain.PastSchedulesCall{}, nil
	case domain.ToolCurrentTime:
		return domain.CurrentTimeCall{}, nil
	case domain.ToolRetrieveContext:
		return domain.RetrieveContextCall{UserQuery: values["user_query"]}, nil
	}
	return nil, domain.WrapError(domain.ErrUnknownTool, "parse tool call", fmt.Errorf("%q", name))
}

func declares(d domain.ToolDescriptor, param string) bool {
	for _, p := range d.Parameters {
		if p.Name == param {
			return true
		}
	}
	return false
}

// Execute runs a parsed call. Store failures become error-status results; only a nil call is an error.
func (r *ToolRegistry) Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	switch c := call.(type) {
	case domain.BookInterviewCall:
		return r.bookInterview(ctx, c), nil
	case domain.PastSchedulesCall:
		return r.pastSchedules(ctx), nil
	case domain.CurrentTimeCall:
		return domain.ToolResult{
			Payload: map[string]any{"current_time": r.clock.Now().Format(currentTimeLayout)},
		}, nil
	case domain.RetrieveContextCall:
		return r.retrieveContext(ctx, c), nil
	default:
		return domain.ToolResult{}, domain.WrapError(domain.ErrUnknownTool, "execute tool", fmt.Errorf("%T", call))
	}
}

func (r *ToolRegistry) bookInterview(ctx context.Context, c domain.BookInterviewCall) domain.ToolResult {
	result := r.interviews.AppendInterview(ctx, domain.InterviewBooking{
		CandidateName:  c.Name,
		CandidateEmail: c.Email,
		Date:           c.Date,
		Time:           c.Time,
	})
	if !result.OK {
		return errorResult(fmt.Sprintf("Could not book the interview for %s: %s", c.Name, result.Message))
	}
	return domain.ToolResult{
		Status: domain.ToolStatusSuccess,
		Payload: map[string]any{
			"message": fmt.Sprintf("Interview for %s has been booked for %s at %s.", c.Name, c.Date, c.Time),
		},
	}
}

func (r *ToolRegistry) pastSchedules(ctx context.Context) domain.ToolResult {
	bookings, err := r.interviews.ListInterviews(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Could not load interview schedules: %v", err))
	}
	if bookings == nil {
		bookings = []domain.InterviewBooking{}
	}
	return domain.ToolResult{
		Status:  domain.ToolStatusSuccess,
		Payload: map[string]any{"schedules": bookings},
	}
}

func (r *ToolRegistry) retrieveContext(ctx context.Context, c domain.RetrieveContextCall) domain.ToolResult {
	text, err := r.retriever.RetrieveContext(ctx, c.UserQuery)
	if err != nil {
		return errorResult(fmt.Sprintf("Could not search the documents: %v", err))
	}
	return domain.ToolResult{
		Status:  domain.ToolStatusSuccess,
		Payload: map[string]any{"context": text},
	}
}

func errorResult(message string) domain.ToolResult {
	return domain.ToolResult{
		Status:  domain.ToolStatusError,
		Payload: map[string]any{"message": message},
	}
}
