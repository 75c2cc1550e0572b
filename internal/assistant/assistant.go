// Package assistant implements the dashboard's conversational helper:
// a linear, append-only chat history in front of a single
// chat-completions backend.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stockdeck/stockdeck/internal/llm"
)

// ErrBusy is returned when a turn is requested while another is still
// in flight. The widget serializes turns; there is no queue.
var ErrBusy = errors.New("assistant: a turn is already in flight")

// ErrEmptyPrompt is returned for blank user input.
var ErrEmptyPrompt = errors.New("assistant: empty prompt")

// DefaultWindow is how many trailing history messages accompany each
// turn. The full history is kept for display; only this window is sent.
const DefaultWindow = 12

// DefaultSystemPrompt frames the assistant for investor questions.
const DefaultSystemPrompt = "You are StockDeck's market assistant. Answer questions about " +
	"stocks, markets, and investing concepts concisely and factually. You do not have " +
	"live market access beyond what the user pastes in, and you never give personalized " +
	"financial advice."

// ChatClient is the slice of llm.Client the assistant needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error)
	ChatStream(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (<-chan llm.StreamChunk, error)
}

// Turn is one displayed history entry.
type Turn struct {
	Role    llm.Role  `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Assistant holds one conversation. Safe for concurrent use; only one
// turn runs at a time, a second caller gets ErrBusy instead of queuing.
type Assistant struct {
	mu       sync.Mutex
	client   ChatClient
	system   string
	window   int
	history  []Turn
	inFlight bool
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Assistant) { a.system = prompt }
}

// WithWindow overrides how many trailing messages are sent per turn.
func WithWindow(n int) Option {
	return func(a *Assistant) { a.window = n }
}

// New creates an assistant over the given chat backend.
func New(client ChatClient, opts ...Option) *Assistant {
	a := &Assistant{
		client: client,
		system: DefaultSystemPrompt,
		window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask runs one full turn: the prompt is appended to history, the model
// answers, and the answer is appended too. On backend failure the user
// turn stays in history and the error is returned.
func (a *Assistant) Ask(ctx context.Context, prompt string) (string, error) {
	messages, err := a.beginTurn(prompt)
	if err != nil {
		return "", err
	}
	defer a.endTurn()

	resp, err := a.client.Chat(ctx, messages, nil)
	if err != nil {
		return "", err
	}

	a.appendTurn(llm.RoleAssistant, resp.Content)
	return resp.Content, nil
}

// AskStream runs one turn with a streamed answer. Each token lands on
// the returned channel; the assembled answer is appended to history
// once the stream completes.
func (a *Assistant) AskStream(ctx context.Context, prompt string) (<-chan llm.StreamChunk, error) {
	messages, err := a.beginTurn(prompt)
	if err != nil {
		return nil, err
	}

	upstream, err := a.client.ChatStream(ctx, messages, nil)
	if err != nil {
		a.endTurn()
		return nil, err
	}

	out := make(chan llm.StreamChunk, 64)
	go func() {
		defer a.endTurn()
		defer close(out)

		var sb strings.Builder
		for chunk := range upstream {
			if chunk.Err == nil {
				sb.WriteString(chunk.Content)
			}
			out <- chunk
		}
		if sb.Len() > 0 {
			a.appendTurn(llm.RoleAssistant, sb.String())
		}
	}()
	return out, nil
}

// History returns a copy of the full conversation, oldest first.
func (a *Assistant) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Turn, len(a.history))
	copy(out, a.history)
	return out
}

// Reset clears the conversation. A turn in flight keeps running but
// its answer is appended to the fresh history.
func (a *Assistant) Reset() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}

// beginTurn validates the prompt, claims the in-flight slot, appends
// the user turn and returns the message window to send.
func (a *Assistant) beginTurn(prompt string) ([]llm.Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inFlight {
		return nil, ErrBusy
	}
	a.inFlight = true
	a.history = append(a.history, Turn{Role: llm.RoleUser, Content: prompt, At: time.Now()})

	return a.windowLocked(), nil
}

func (a *Assistant) endTurn() {
	a.mu.Lock()
	a.inFlight = false
	a.mu.Unlock()
}

func (a *Assistant) appendTurn(role llm.Role, content string) {
	a.mu.Lock()
	a.history = append(a.history, Turn{Role: role, Content: content, At: time.Now()})
	a.mu.Unlock()
}

// windowLocked builds the outgoing messages: system prompt plus the
// trailing window of history. Must be called with mu held.
func (a *Assistant) windowLocked() []llm.Message {
	start := 0
	if a.window > 0 && len(a.history) > a.window {
		start = len(a.history) - a.window
	}

	messages := make([]llm.Message, 0, len(a.history)-start+1)
	messages = append(messages, llm.SystemMessage(a.system))
	for _, t := range a.history[start:] {
		messages = append(messages, llm.NewMessage(t.Role, t.Content))
	}
	return messages
}
