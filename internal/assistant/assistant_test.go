package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stockdeck/stockdeck/internal/llm"
)

// fakeChat records requests and plays back canned answers.
type fakeChat struct {
	lastMessages []llm.Message
	answer       string
	err          error
	chunks       []llm.StreamChunk
	block        chan struct{} // when non-nil, Chat waits until closed
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error) {
	f.lastMessages = messages
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.answer, FinishReason: llm.FinishStop}, nil
}

func (f *fakeChat) ChatStream(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	f.lastMessages = messages
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan llm.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func TestAsk(t *testing.T) {
	fake := &fakeChat{answer: "Diversification spreads risk."}
	a := New(fake)

	answer, err := a.Ask(context.Background(), "What is diversification?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "Diversification spreads risk." {
		t.Fatalf("answer: %q", answer)
	}

	// System prompt leads, then the user turn.
	if len(fake.lastMessages) != 2 {
		t.Fatalf("sent %d messages", len(fake.lastMessages))
	}
	if fake.lastMessages[0].Role != llm.RoleSystem {
		t.Fatalf("first message role: %s", fake.lastMessages[0].Role)
	}

	history := a.History()
	if len(history) != 2 {
		t.Fatalf("history length: %d", len(history))
	}
	if history[0].Role != llm.RoleUser || history[1].Role != llm.RoleAssistant {
		t.Fatalf("history roles: %+v", history)
	}
}

func TestAskEmptyPrompt(t *testing.T) {
	a := New(&fakeChat{})
	if _, err := a.Ask(context.Background(), "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if len(a.History()) != 0 {
		t.Fatal("blank prompt must not enter history")
	}
}

func TestAskBackendFailureKeepsUserTurn(t *testing.T) {
	a := New(&fakeChat{err: llm.ErrProviderDown})
	if _, err := a.Ask(context.Background(), "hello"); !errors.Is(err, llm.ErrProviderDown) {
		t.Fatalf("expected backend error, got %v", err)
	}

	history := a.History()
	if len(history) != 1 || history[0].Role != llm.RoleUser {
		t.Fatalf("history after failure: %+v", history)
	}

	// The slot is released; the next turn proceeds.
	a2 := New(&fakeChat{answer: "ok"})
	if _, err := a2.Ask(context.Background(), "retry"); err != nil {
		t.Fatalf("followup turn: %v", err)
	}
}

func TestAskSingleInFlight(t *testing.T) {
	block := make(chan struct{})
	fake := &fakeChat{answer: "slow answer", block: block}
	a := New(fake)

	done := make(chan error, 1)
	go func() {
		_, err := a.Ask(context.Background(), "first")
		done <- err
	}()

	// Wait until the first turn holds the slot.
	for len(a.History()) == 0 {
		time.Sleep(time.Millisecond)
	}

	if _, err := a.Ask(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first turn: %v", err)
	}

	// After completion the slot is free again.
	if _, err := a.Ask(context.Background(), "third"); err != nil {
		t.Fatalf("post-completion turn: %v", err)
	}
}

func TestAskStream(t *testing.T) {
	fake := &fakeChat{chunks: []llm.StreamChunk{
		{Content: "Bonds "},
		{Content: "pay "},
		{Content: "coupons."},
		{Done: true},
	}}
	a := New(fake)

	ch, err := a.AskStream(context.Background(), "What do bonds pay?")
	if err != nil {
		t.Fatalf("AskStream: %v", err)
	}

	var sb strings.Builder
	for chunk := range ch {
		sb.WriteString(chunk.Content)
	}
	if sb.String() != "Bonds pay coupons." {
		t.Fatalf("assembled: %q", sb.String())
	}

	history := a.History()
	if len(history) != 2 {
		t.Fatalf("history length: %d", len(history))
	}
	if history[1].Content != "Bonds pay coupons." {
		t.Fatalf("assembled answer not in history: %q", history[1].Content)
	}
}

func TestWindowBoundsOutgoingMessages(t *testing.T) {
	fake := &fakeChat{answer: "ok"}
	a := New(fake, WithWindow(4))

	for i := 0; i < 6; i++ {
		if _, err := a.Ask(context.Background(), fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	// Full history is retained for display.
	if got := len(a.History()); got != 12 {
		t.Fatalf("history length: %d", got)
	}

	// Outgoing: system prompt + 4-message trailing window.
	if got := len(fake.lastMessages); got != 5 {
		t.Fatalf("sent %d messages, want 5", got)
	}
	if fake.lastMessages[len(fake.lastMessages)-1].Content != "question 5" {
		t.Fatalf("window must end with the newest turn: %q",
			fake.lastMessages[len(fake.lastMessages)-1].Content)
	}
}

func TestReset(t *testing.T) {
	a := New(&fakeChat{answer: "ok"})
	if _, err := a.Ask(context.Background(), "hello"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	a.Reset()
	if len(a.History()) != 0 {
		t.Fatal("history survives Reset")
	}
}
