package dialogue

import (
	"strings"
	"sync"

	"github.com/Urzzard/Operador-IA/pkg/core/types"
)

// Stage is the conversation's position in verification → welcome →
// questions → farewell.
type Stage string

const (
	StageVerification Stage = "verification"
	StageWelcome      Stage = "welcome"
	StageQuestions    Stage = "questions"
	StageFarewell     Stage = "farewell"
)

func (s Stage) rank() int {
	switch s {
	case StageVerification:
		return 0
	case StageWelcome:
		return 1
	case StageQuestions:
		return 2
	case StageFarewell:
		return 3
	default:
		return -1
	}
}

// Employee is read-only directory data for the person being called.
type Employee struct {
	Name      string `json:"name"`
	DNI       string `json:"dni"`
	JobTitle  string `json:"job_title"`
	StartDate string `json:"start_date"`
	Phone     string `json:"phone"`
}

// FirstName returns the first word of Name.
func (e Employee) FirstName() string {
	if f := strings.Fields(e.Name); len(f) > 0 {
		return f[0]
	}
	return ""
}

// Conversation is the dialogue state of one call.
type Conversation struct {
	CallSID  string
	Employee Employee

	mu       sync.Mutex
	stage    Stage
	verified bool
	history  []types.Message
}

// NewConversation starts a conversation in verification.
func NewConversation(callSID string, e Employee) *Conversation {
	return &Conversation{
		CallSID:  callSID,
		Employee: e,
		stage:    StageVerification,
	}
}

// Stage returns the current stage.
func (c *Conversation) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Verified reports whether the caller confirmed their identity.
func (c *Conversation) Verified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verified
}

// History returns a copy of the transcript.
func (c *Conversation) History() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.Clone(c.history)
}

// RecordAssistant appends an assistant turn that did not come from Respond,
// such as the greeting.
func (c *Conversation) RecordAssistant(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, types.AssistantMessage(text))
}

// commit appends the user and assistant turns and advances the stage. Stage
// never moves backwards.
func (c *Conversation) commit(utterance, reply string, next Stage, verified bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, types.UserMessage(utterance), types.AssistantMessage(reply))
	if next.rank() >= c.stage.rank() {
		c.stage = next
	}
	if verified {
		c.verified = true
	}
}
