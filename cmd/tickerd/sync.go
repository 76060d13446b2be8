package main

import (
	"context"
	"errors"
	"time"

	"github.com/alim08/coin_ticker/pkg/config"
	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/provider"
	"github.com/alim08/coin_ticker/pkg/redisclient"
	"github.com/alim08/coin_ticker/pkg/ticker"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Listener is the subscribe side of the Redis client.
type Listener interface {
	Listen(ctx context.Context, handle func(channel string, b redisclient.Broadcast)) error
}

// relayBroadcasts feeds claims and sets published by other processes into the
// local provider, re-subscribing with backoff until ctx is done.
func relayBroadcasts(ctx context.Context, l Listener, p *provider.Provider, key string) {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 0
	bo := backoff.WithContext(eb, ctx)

	err := backoff.Retry(func() error {
		err := l.Listen(ctx, func(channel string, b redisclient.Broadcast) {
			handleBroadcast(p, key, channel, b)
		})
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errors.New("broadcast subscription closed")
		}
		logger.Log.Warn("broadcast listener stopped, resubscribing", zap.Error(err))
		return err
	}, bo)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Error("broadcast relay stopped", zap.Error(err))
	}
}

func handleBroadcast(p *provider.Provider, key, channel string, b redisclient.Broadcast) {
	if b.Key != key {
		return
	}
	switch channel {
	case redisclient.ClaimChannel:
		p.NoteClaim(b.ClaimedAt)
	case redisclient.DataChannel:
		if p.Apply(b.Snapshots) {
			logger.Log.Debug("applied snapshots from peer",
				zap.Int("coins", b.Snapshots.Len()), zap.Time("fetched_at", b.Snapshots.FetchedAt))
		}
	}
}

// refreshLoop keeps the cache warm by asking once per TTL. Failures are
// logged by the provider and the loop carries on.
func refreshLoop(ctx context.Context, p *provider.Provider, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fetchCtx, cancel := context.WithTimeout(ctx, every)
			p.GetOrFetch(fetchCtx)
			cancel()
		}
	}
}

// prewarm attaches the configured widgets and logs their text on every update.
// The returned func detaches them.
func prewarm(ctx context.Context, p *provider.Provider, specs []config.WidgetSpec) func() {
	widgets := make([]*ticker.Widget, 0, len(specs))
	for _, spec := range specs {
		w := ticker.NewWidget(p, spec.Coin, spec.Show)
		widgets = append(widgets, w)
		go func(spec config.WidgetSpec, w *ticker.Widget) {
			w.Activate(ctx)
			for text := range w.Updates() {
				logger.Log.Info("widget updated",
					zap.String("coin", spec.Coin), zap.String("show", spec.Show), zap.String("text", text))
			}
		}(spec, w)
	}
	logger.Log.Info("widgets attached", zap.Int("count", len(widgets)))

	return func() {
		for _, w := range widgets {
			w.Detach()
		}
	}
}
