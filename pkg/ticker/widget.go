package ticker

import (
	"context"
	"sync"
	"time"

	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/metrics"
	"github.com/alim08/coin_ticker/pkg/models"
	"github.com/alim08/coin_ticker/pkg/provider"
	"github.com/alim08/coin_ticker/pkg/validation"
	"go.uber.org/zap"
)

// DefaultClaimWait is how long a widget that saw another instance's claim
// waits passively before it asks the provider itself.
const DefaultClaimWait = 15 * time.Second

// State is the per-instance ticker state.
type State struct {
	Coin      string
	Show      string
	Snapshots *models.SnapshotSet
	LastFetch time.Time
	Claimed   bool
	ClaimedAt time.Time
}

// Widget is one attached ticker instance. All instances created from the same
// Provider share its cache and its in-flight fetch.
type Widget struct {
	provider  *provider.Provider
	now       func() time.Time
	claimWait time.Duration

	events      <-chan provider.Event
	unsubscribe func()
	done        chan struct{}
	wg          sync.WaitGroup

	mu       sync.Mutex
	state    State
	failedAt time.Time
	updates  chan string
	detached bool
}

type WidgetOption func(*Widget)

func WithWidgetClock(now func() time.Time) WidgetOption {
	return func(w *Widget) { w.now = now }
}

// WithClaimWait overrides DefaultClaimWait.
func WithClaimWait(d time.Duration) WidgetOption {
	return func(w *Widget) { w.claimWait = d }
}

// NewWidget attaches a widget to p. The coin is case-insensitive; an empty
// show means USD. Call Detach when done.
func NewWidget(p *provider.Provider, coin, show string, opts ...WidgetOption) *Widget {
	w := &Widget{
		provider:  p,
		now:       time.Now,
		claimWait: DefaultClaimWait,
		done:      make(chan struct{}),
		updates:   make(chan string, 1),
		state: State{
			Coin: validation.NormalizeSymbol(coin),
			Show: validation.SanitizeString(show),
		},
	}
	for _, opt := range opts {
		opt(w)
	}

	w.events, w.unsubscribe = p.Subscribe()
	if set, _, ok := p.Snapshot(); ok {
		w.state.Snapshots = set
		w.state.LastFetch = set.FetchedAt
	}

	metrics.ActiveWidgets.Inc()
	w.wg.Add(1)
	go w.listen()
	return w
}

func (w *Widget) listen() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case e, ok := <-w.events:
			if !ok {
				return
			}
			switch e.Type {
			case provider.EventFetchClaimed:
				w.mu.Lock()
				w.state.Claimed = true
				w.state.ClaimedAt = e.ClaimedAt
				w.mu.Unlock()
			case provider.EventFetchFailed:
				w.mu.Lock()
				if !w.state.ClaimedAt.After(e.ClaimedAt) {
					w.state.Claimed = false
				}
				w.mu.Unlock()
			case provider.EventDataAvailable:
				w.apply(e.Snapshots)
			}
		}
	}
}

// Activate runs the fetch decision. A widget that has no data and saw a
// recent claim waits for the broadcast instead of asking. Otherwise it asks
// the provider, which serves the cache or joins the in-flight fetch. Errors
// are logged and returned; the widget keeps what it showed before. A claim
// no newer than the last failed fetch does not make the widget wait.
func (w *Widget) Activate(ctx context.Context) error {
	w.mu.Lock()
	passive := w.state.Snapshots == nil && w.state.Claimed &&
		w.state.ClaimedAt.After(w.failedAt) &&
		w.now().Sub(w.state.ClaimedAt) < w.claimWait
	coin := w.state.Coin
	w.mu.Unlock()
	if passive {
		logger.Log.Debug("fetch already claimed, waiting for broadcast", zap.String("coin", coin))
		return nil
	}

	set, err := w.provider.GetOrFetch(ctx)
	if err != nil {
		logger.Log.Warn("widget activation failed", zap.String("coin", coin), zap.Error(err))
		w.mu.Lock()
		w.state.Claimed = false
		w.failedAt = w.now()
		w.mu.Unlock()
		return err
	}
	w.apply(set)
	return nil
}

func (w *Widget) apply(set *models.SnapshotSet) {
	if set == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.detached {
		return
	}
	if w.state.Snapshots == set {
		return
	}
	w.state.Snapshots = set
	w.state.LastFetch = set.FetchedAt
	w.state.Claimed = false
	text, _ := Evaluate(w.state.Coin, w.state.Show, set)

	// Keep only the newest text for a slow reader
	select {
	case <-w.updates:
	default:
	}
	w.updates <- text
}

// Text renders the current state.
func (w *Widget) Text() string {
	text, _ := w.Render()
	return text
}

// Render is Text plus the outcome.
func (w *Widget) Render() (string, Outcome) {
	w.mu.Lock()
	text, outcome := Evaluate(w.state.Coin, w.state.Show, w.state.Snapshots)
	w.mu.Unlock()
	metrics.RenderCounter.WithLabelValues(string(outcome)).Inc()
	return text, outcome
}

// State returns a copy of the current state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Updates delivers the rendered text after each new snapshot set. Only the
// newest pending text is kept. The channel is closed by Detach.
func (w *Widget) Updates() <-chan string {
	return w.updates
}

// Detach unsubscribes and stops the widget. Safe to call more than once.
func (w *Widget) Detach() {
	w.mu.Lock()
	if w.detached {
		w.mu.Unlock()
		return
	}
	w.detached = true
	close(w.done)
	close(w.updates)
	w.mu.Unlock()

	w.unsubscribe()
	w.wg.Wait()
	metrics.ActiveWidgets.Dec()
}
