// Package dialogue is the conversation state machine: identity verification,
// welcome, free questions answered from company facts, and farewell.
package dialogue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/core/types"
	"github.com/Urzzard/Operador-IA/pkg/core/voice"
)

// DefaultReplyTimeout bounds one reply-generation call.
const DefaultReplyTimeout = 8 * time.Second

// maxReplySentences bounds model answers for the telephone medium.
const maxReplySentences = 2

// Source says where a reply came from.
type Source string

const (
	SourceScript   Source = "script"
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Reply is the outcome of one caller utterance.
type Reply struct {
	Text   string
	Stage  Stage
	Source Source
	// Hangup is set once the conversation has reached farewell.
	Hangup bool
	// Err is the reply-generation failure that caused a fallback, if any.
	Err error
}

// Config configures a Machine.
type Config struct {
	Company      Company
	Provider     core.Provider // nil always uses the keyword fallback
	ReplyTimeout time.Duration
	Temperature  float64
	MaxTokens    int
	ContextSize  int
	Logger       *slog.Logger
}

// Machine computes replies. It holds no per-call state and is safe for
// concurrent use across calls.
type Machine struct {
	company      Company
	provider     core.Provider
	replyTimeout time.Duration
	temperature  float64
	maxTokens    int
	contextSize  int
	logger       *slog.Logger
}

// NewMachine creates a Machine.
func NewMachine(cfg Config) *Machine {
	if cfg.Company == (Company{}) {
		cfg.Company = DefaultCompany()
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		company:      cfg.Company,
		provider:     cfg.Provider,
		replyTimeout: cfg.ReplyTimeout,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		contextSize:  cfg.ContextSize,
		logger:       cfg.Logger,
	}
}

// Company returns the company profile.
func (m *Machine) Company() Company {
	return m.company
}

// Greet returns the opening prompt and records it as the first assistant turn.
func (m *Machine) Greet(conv *Conversation) string {
	text := Greeting(m.company, conv.Employee)
	conv.RecordAssistant(text)
	return text
}

// Respond advances conv with the caller's utterance and returns the reply.
// It never fails: reply-generation errors fall back to fixed answers.
func (m *Machine) Respond(ctx context.Context, conv *Conversation, utterance string) Reply {
	utterance = strings.TrimSpace(utterance)
	var r Reply
	switch conv.Stage() {
	case StageVerification:
		r = m.verify(conv, utterance)
	case StageWelcome, StageQuestions:
		r = m.answer(ctx, conv, utterance)
	default:
		r = Reply{Text: farewellText, Stage: StageFarewell, Source: SourceScript}
	}
	r.Hangup = r.Stage == StageFarewell

	conv.commit(utterance, r.Text, r.Stage, r.Stage == StageQuestions)
	return r
}

func (m *Machine) verify(conv *Conversation, utterance string) Reply {
	tokens := Tokens(utterance)
	negative := negativeWords.matchTokens(tokens)

	switch {
	case affirmativeWords.matchTokens(tokens), !negative && m.saysOwnName(conv.Employee, tokens):
		// welcome is spoken and the conversation moves straight on to questions
		return Reply{Text: welcomeText(m.company, conv.Employee), Stage: StageQuestions, Source: SourceScript}
	case negative:
		return Reply{Text: apologyText, Stage: StageFarewell, Source: SourceScript}
	default:
		return Reply{Text: reaskText(m.company, conv.Employee), Stage: StageVerification, Source: SourceScript}
	}
}

func (m *Machine) saysOwnName(e Employee, tokens []string) bool {
	if full := Tokens(e.Name); len(full) > 0 && containsRun(tokens, full) {
		return true
	}
	first := Tokens(e.FirstName())
	return len(first) > 0 && containsRun(tokens, first)
}

func (m *Machine) answer(ctx context.Context, conv *Conversation, utterance string) Reply {
	tokens := Tokens(utterance)

	if closureWords.matchTokens(tokens) && !hasTopic(tokens) && !strings.ContainsAny(utterance, "?¿") {
		return Reply{Text: closingText, Stage: StageFarewell, Source: SourceScript}
	}

	text, err := m.generate(ctx, conv, utterance)
	source := SourceModel
	if err != nil {
		m.logger.Warn("reply generation failed, using fallback",
			"call_sid", conv.CallSID, "err", err)
		text = fallbackAnswer(m.company, tokens)
		source = SourceFallback
	}

	next := StageQuestions
	if source == SourceModel {
		if short, cut := voice.FirstSentences(text, maxReplySentences); cut {
			text = short
		}
		if modelFarewell.match(text) {
			next = StageFarewell
		}
	}
	if next != StageFarewell && !strings.Contains(text, "?") {
		text = strings.TrimSpace(text) + " " + anythingElse
	}
	return Reply{Text: text, Stage: next, Source: source, Err: err}
}

func (m *Machine) generate(ctx context.Context, conv *Conversation, utterance string) (string, error) {
	if m.provider == nil {
		return "", core.NewProviderError("none", errNoProvider)
	}
	ctx, cancel := context.WithTimeout(ctx, m.replyTimeout)
	defer cancel()

	msgs := append(conv.History(), types.UserMessage(utterance))
	text, err := m.provider.Generate(ctx, &core.GenerateRequest{
		System:      SystemPrompt(m.company, conv.Employee),
		Messages:    msgs,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
		ContextSize: m.contextSize,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", core.NewEmptyResponseError(m.provider.Name())
	}
	return strings.TrimSpace(text), nil
}
