package conversation

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a call. Turns are never modified after they are
// appended.
type Turn struct {
	Role      Role      `json:"role" msgpack:"role" yaml:"role"`
	Text      string    `json:"text" msgpack:"text" yaml:"text"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at" yaml:"created_at"`
}

// Session is a point-in-time copy of one call's state. Mutating a Session
// does not affect the store.
type Session struct {
	CallID       string            `json:"call_id" msgpack:"call_id" yaml:"call_id"`
	Turns        []Turn            `json:"turns" msgpack:"turns" yaml:"turns"`
	Context      map[string]string `json:"context,omitempty" msgpack:"context,omitempty" yaml:"context,omitempty"`
	StartedAt    time.Time         `json:"started_at" msgpack:"started_at" yaml:"started_at"`
	LastActivity time.Time         `json:"last_activity" msgpack:"last_activity" yaml:"last_activity"`
}

// Context keys written by the turn controller.
const (
	ContextTone    = "tone"
	ContextEnergy  = "energy"
	ContextSilence = "silence"
)
