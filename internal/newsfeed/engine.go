package newsfeed

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stockdeck/stockdeck/pkg/models"
)

// DegradedMessage is the fixed user-facing notice shown with sample
// content after every real provider failed or returned nothing.
const DegradedMessage = "Failed to load news. Using sample data."

// State is the presenter-facing snapshot of one retrieval lifecycle.
// Invariants: Items holds at most MaxItems entries; ErrorMessage is
// non-empty only in the degraded phase; LastRefreshedAt moves exactly
// once per resolved refresh.
type State struct {
	Category        models.Category   `json:"category"`
	Items           []models.NewsItem `json:"items"`
	Phase           models.Phase      `json:"phase"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	LastRefreshedAt time.Time         `json:"last_refreshed_at"`
}

// Engine owns the news widget's retrieval state and runs the fallback
// chain: providers in fixed order, each attempted exactly once per
// refresh, then the sample source. Provider failures and empty results
// are absorbed here; a refresh always resolves to Ready or Degraded.
type Engine struct {
	mu        sync.Mutex
	providers []Provider
	samples   *SampleSource
	state     State

	// reqSeq is the supersession token: each refresh takes the next
	// value, and a resolution whose token is no longer current is
	// discarded without touching state.
	reqSeq uint64
}

// NewEngine creates an engine over the given provider chain. Provider
// order is the fallback order.
func NewEngine(providers []Provider, samples *SampleSource) *Engine {
	return &Engine{
		providers: providers,
		samples:   samples,
		state: State{
			Category: models.CategoryGeneral,
			Phase:    models.PhaseIdle,
		},
	}
}

// State returns a read-only snapshot of the current retrieval state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Refresh re-runs the fallback chain for the current category and
// returns the resolved snapshot.
func (e *Engine) Refresh(ctx context.Context) State {
	e.mu.Lock()
	category := e.state.Category
	e.mu.Unlock()
	return e.refresh(ctx, category)
}

// SelectCategory switches the widget to a new category and refreshes.
// Items from the old category are retained only while loading; they are
// replaced once the new retrieval resolves.
func (e *Engine) SelectCategory(ctx context.Context, category models.Category) State {
	return e.refresh(ctx, category)
}

// refresh runs one pass of the chain. Prior items are kept on display
// during the Loading phase (stale-while-revalidate); the state is only
// rewritten when this refresh is still the most recently requested one.
func (e *Engine) refresh(ctx context.Context, category models.Category) State {
	e.mu.Lock()
	e.reqSeq++
	token := e.reqSeq
	e.state.Category = category
	e.state.Phase = models.PhaseLoading
	// Prior items stay on display while loading, but the degraded
	// notice belongs to the previous resolution only.
	e.state.ErrorMessage = ""
	e.mu.Unlock()

	items, degraded := e.runChain(ctx, category)

	e.mu.Lock()
	defer e.mu.Unlock()

	if token != e.reqSeq {
		// A newer refresh superseded this one; discard the outcome.
		return e.snapshotLocked()
	}

	e.state.Items = items
	e.state.LastRefreshedAt = time.Now()
	if degraded {
		e.state.Phase = models.PhaseDegraded
		e.state.ErrorMessage = DegradedMessage
	} else {
		e.state.Phase = models.PhaseReady
		e.state.ErrorMessage = ""
	}
	return e.snapshotLocked()
}

// runChain attempts each provider once, strictly sequentially, and falls
// back to samples when none yields a non-empty result. A cancelled
// context surfaces as an ordinary provider failure, so the chain still
// terminates in a served state.
func (e *Engine) runChain(ctx context.Context, category models.Category) (items []models.NewsItem, degraded bool) {
	for _, p := range e.providers {
		got, err := p.Fetch(ctx, category)
		if err != nil {
			log.Printf("newsfeed: %s failed: %v", p.Name(), err)
			continue
		}
		if len(got) == 0 {
			// Structurally fine but useless; advance the chain.
			log.Printf("newsfeed: %s returned no items", p.Name())
			continue
		}
		return truncate(got), false
	}

	return e.samples.Get(category), true
}

// snapshotLocked copies the state so callers never alias the engine's
// item slice. Must be called with mu held.
func (e *Engine) snapshotLocked() State {
	s := e.state
	s.Items = make([]models.NewsItem, len(e.state.Items))
	copy(s.Items, e.state.Items)
	return s
}
