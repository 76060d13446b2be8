package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/metrics"
	"github.com/alim08/coin_ticker/pkg/models"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL      = 300 * time.Second
	DefaultPeerWait = 5 * time.Second

	subscriberBuffer = 16
)

var errPeerPending = errors.New("peer fetch still pending")

// Fetcher issues one market-data request. Key identifies the request
// parameters; calls with equal keys are interchangeable.
type Fetcher interface {
	Key() string
	FetchSnapshots(ctx context.Context) (*models.SnapshotSet, error)
}

// SharedStore is a cache shared with other processes.
type SharedStore interface {
	LoadSnapshots(ctx context.Context, key string) (*models.SnapshotSet, error)
	ClaimFetch(ctx context.Context, key string, hold time.Duration) (bool, error)
	StoreSnapshots(ctx context.Context, key string, set *models.SnapshotSet, ttl time.Duration) error
	ReleaseClaim(ctx context.Context, key string) error
}

// Provider is the single data source shared by every widget. It serves a
// cached snapshot set while it is younger than the TTL and lets at most one
// request per key be in flight.
type Provider struct {
	fetcher  Fetcher
	store    SharedStore
	ttl      time.Duration
	peerWait time.Duration
	now      func() time.Time
	bus      *Bus
	group    singleflight.Group

	mu        sync.RWMutex
	set       *models.SnapshotSet
	fetchedAt time.Time
}

type Option func(*Provider)

// WithTTL sets how long a snapshot set is served without refetching.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithSharedStore makes the provider consult store before fetching and
// publish every fetched set to it. peerWait bounds how long it waits for
// another process that holds the fetch claim.
func WithSharedStore(store SharedStore, peerWait time.Duration) Option {
	return func(p *Provider) {
		p.store = store
		p.peerWait = peerWait
	}
}

// WithInitialSnapshots seeds the cache, e.g. from a bundled fixture.
func WithInitialSnapshots(set *models.SnapshotSet) Option {
	return func(p *Provider) {
		p.set = set
		p.fetchedAt = set.FetchedAt
	}
}

func New(fetcher Fetcher, opts ...Option) *Provider {
	p := &Provider{
		fetcher:  fetcher,
		ttl:      DefaultTTL,
		peerWait: DefaultPeerWait,
		now:      time.Now,
		bus:      NewBus(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the current set without fetching. ok is false until the
// first set arrives.
func (p *Provider) Snapshot() (set *models.SnapshotSet, fetchedAt time.Time, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.set, p.fetchedAt, p.set != nil
}

// Subscribe returns the event stream and its cancel func.
func (p *Provider) Subscribe() (<-chan Event, func()) {
	return p.bus.Subscribe(subscriberBuffer)
}

// Close ends every subscription.
func (p *Provider) Close() {
	p.bus.Close()
}

func (p *Provider) isFresh(at time.Time) bool {
	return !at.IsZero() && p.now().Sub(at) < p.ttl
}

func (p *Provider) fresh() (*models.SnapshotSet, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.set != nil && p.isFresh(p.fetchedAt) {
		return p.set, true
	}
	return nil, false
}

// GetOrFetch returns a set no older than the TTL, fetching when needed.
// Concurrent callers share one request. On failure the cached state is left
// untouched and the error is returned; nothing is retried.
func (p *Provider) GetOrFetch(ctx context.Context) (*models.SnapshotSet, error) {
	if set, ok := p.fresh(); ok {
		metrics.CacheHits.Inc()
		return set, nil
	}

	leader := false
	// The flight outlives any single caller; each caller only stops waiting.
	flightCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(p.fetcher.Key(), func() (interface{}, error) {
		leader = true
		return p.refresh(flightCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if !leader {
			metrics.DedupedFetches.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.SnapshotSet), nil
	}
}

// refresh runs inside the single flight.
func (p *Provider) refresh(ctx context.Context) (*models.SnapshotSet, error) {
	// A flight that finished just before this one started already did the work
	if set, ok := p.fresh(); ok {
		metrics.CacheHits.Inc()
		return set, nil
	}

	key := p.fetcher.Key()
	if p.store != nil {
		if set := p.loadShared(ctx, key); set != nil {
			return set, nil
		}
		won, err := p.store.ClaimFetch(ctx, key, p.claimHold())
		switch {
		case err != nil:
			logger.Log.Warn("shared claim failed, fetching locally", zap.String("key", key), zap.Error(err))
		case !won:
			logger.Log.Debug("another process holds the fetch claim", zap.String("key", key))
			if set := p.awaitPeer(ctx, key); set != nil {
				return set, nil
			}
			logger.Log.Info("claimant did not deliver, fetching locally", zap.String("key", key))
		default:
			defer func() {
				if err := p.store.ReleaseClaim(ctx, key); err != nil {
					logger.Log.Warn("release claim failed", zap.String("key", key), zap.Error(err))
				}
			}()
		}
	}

	claimedAt := p.now()
	p.bus.Publish(Event{Type: EventFetchClaimed, ClaimedAt: claimedAt})

	set, err := p.fetcher.FetchSnapshots(ctx)
	if err != nil {
		logger.Log.Warn("market data fetch failed", zap.String("key", key), zap.Error(err))
		p.bus.Publish(Event{Type: EventFetchFailed, ClaimedAt: claimedAt})
		return nil, err
	}
	p.install(set, p.now())
	logger.Log.Info("market data refreshed", zap.String("key", key), zap.Int("coins", set.Len()))

	if p.store != nil {
		if err := p.store.StoreSnapshots(ctx, key, set, p.ttl); err != nil {
			logger.Log.Warn("shared store write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return set, nil
}

// claimHold bounds a claim to the fetch deadline plus the peer wait.
func (p *Provider) claimHold() time.Duration {
	return p.peerWait + 10*time.Second
}

func (p *Provider) loadShared(ctx context.Context, key string) *models.SnapshotSet {
	set, err := p.store.LoadSnapshots(ctx, key)
	if err != nil {
		logger.Log.Warn("shared store read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if set == nil || !p.isFresh(set.FetchedAt) {
		return nil
	}
	metrics.SharedCacheHits.Inc()
	p.install(set, set.FetchedAt)
	return set
}

// awaitPeer polls for the claimant's result until peerWait elapses. A set that
// arrives through Apply in the meantime ends the wait as well.
func (p *Provider) awaitPeer(ctx context.Context, key string) *models.SnapshotSet {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.MaxInterval = time.Second
	eb.MaxElapsedTime = p.peerWait

	var found *models.SnapshotSet
	op := func() error {
		if set, ok := p.fresh(); ok {
			found = set
			return nil
		}
		if set := p.loadShared(ctx, key); set != nil {
			found = set
			return nil
		}
		return errPeerPending
	}
	if err := backoff.Retry(op, backoff.WithContext(eb, ctx)); err != nil {
		return nil
	}
	return found
}

// Apply installs a set received from another process. Sets that are not newer
// than the current one are ignored.
func (p *Provider) Apply(set *models.SnapshotSet) bool {
	if set == nil {
		return false
	}
	p.mu.Lock()
	if p.set != nil && !set.FetchedAt.After(p.fetchedAt) {
		p.mu.Unlock()
		return false
	}
	p.set = set
	p.fetchedAt = set.FetchedAt
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventDataAvailable, Snapshots: set})
	return true
}

// NoteClaim relays a claim made by another process to local subscribers.
func (p *Provider) NoteClaim(claimedAt time.Time) {
	p.bus.Publish(Event{Type: EventFetchClaimed, ClaimedAt: claimedAt})
}

func (p *Provider) install(set *models.SnapshotSet, at time.Time) {
	p.mu.Lock()
	p.set = set
	p.fetchedAt = at
	p.mu.Unlock()
	p.bus.Publish(Event{Type: EventDataAvailable, Snapshots: set})
}
