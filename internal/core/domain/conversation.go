package domain

import "encoding/json"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ConversationTurn is one persisted history entry. Parts holds the turn text.
type ConversationTurn struct {
	Role  string `json:"role"`
	Parts string `json:"parts"`
}

// DecodeHistory parses stored history; absent or malformed payloads yield an empty history.
func DecodeHistory(raw []byte) []ConversationTurn {
	if len(raw) == 0 {
		return []ConversationTurn{}
	}
	var turns []ConversationTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return []ConversationTurn{}
	}
	out := make([]ConversationTurn, 0, len(turns))
	for _, turn := range turns {
		if turn.Role != RoleUser && turn.Role != RoleModel {
			return []ConversationTurn{}
		}
		out = append(out, turn)
	}
	return out
}

func EncodeHistory(turns []ConversationTurn) ([]byte, error) {
	if turns == nil {
		turns = []ConversationTurn{}
	}
	return json.Marshal(turns)
}

type ChatReply struct {
	UserID   string `json:"user_id"`
	Response string `json:"response"`
	Tool     string `json:"tool,omitempty"`
	Outcome  string `json:"-"`
}
