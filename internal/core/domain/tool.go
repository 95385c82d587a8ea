package domain

const (
	ToolBookInterview   = "book_interview"
	ToolPastSchedules   = "get_past_schedules"
	ToolCurrentTime     = "get_current_time"
	ToolRetrieveContext = "retrieve_context"
)

const (
	ToolStatusSuccess = "success"
	ToolStatusError   = "error"
)

type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolDescriptor is the machine-readable calling schema of a registered tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

func (d ToolDescriptor) Required() []string {
	out := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type ParametersSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// Schema renders the descriptor as a JSON-schema object for model function declarations.
func (d ToolDescriptor) Schema() ParametersSchema {
	props := make(map[string]PropertySchema, len(d.Parameters))
	for _, p := range d.Parameters {
		props[p.Name] = PropertySchema{Type: p.Type, Description: p.Description}
	}
	return ParametersSchema{
		Type:       "object",
		Properties: props,
		Required:   d.Required(),
	}
}

// ToolCall is the closed set of invocations the registry can execute.
type ToolCall interface {
	ToolName() string
	isToolCall()
}

type BookInterviewCall struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

type PastSchedulesCall struct{}

type CurrentTimeCall struct{}

type RetrieveContextCall struct {
	UserQuery string `json:"user_query"`
}

func (BookInterviewCall) ToolName() string   { return ToolBookInterview }
func (PastSchedulesCall) ToolName() string   { return ToolPastSchedules }
func (CurrentTimeCall) ToolName() string     { return ToolCurrentTime }
func (RetrieveContextCall) ToolName() string { return ToolRetrieveContext }

func (BookInterviewCall) isToolCall()   {}
func (PastSchedulesCall) isToolCall()   {}
func (CurrentTimeCall) isToolCall()     {}
func (RetrieveContextCall) isToolCall() {}

type ToolResult struct {
	Status  string         `json:"status"`
	Payload map[string]any `json:"payload"`
}

// Document flattens the result into the object handed back to the model.
func (r ToolResult) Document() map[string]any {
	out := make(map[string]any, len(r.Payload)+1)
	for k, v := range r.Payload {
		out[k] = v
	}
	if r.Status != "" {
		out["status"] = r.Status
	}
	return out
}

// FunctionCall is a tool request as emitted by the model, before validation.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ModelReply carries either text or a function call. Both empty means the model gave nothing usable.
type ModelReply struct {
	Text string
	Call *FunctionCall
}
