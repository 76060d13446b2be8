package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alim08/coin_ticker/pkg/config"
	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/marketdata"
	"github.com/alim08/coin_ticker/pkg/models"
	"github.com/alim08/coin_ticker/pkg/provider"
	"github.com/alim08/coin_ticker/pkg/ticker"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// fixtureFetcher serves the bundled sample, stamped with the current time.
type fixtureFetcher struct{}

func (fixtureFetcher) Key() string { return "fixture" }

func (fixtureFetcher) FetchSnapshots(ctx context.Context) (*models.SnapshotSet, error) {
	set := models.SampleSnapshots()
	set.FetchedAt = time.Now()
	return set, nil
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.FromEnv()
	if endpoint := cmd.String("endpoint"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newProvider(cmd *cli.Command, cfg *config.Config) *provider.Provider {
	if cmd.Bool("offline") {
		return provider.New(fixtureFetcher{}, provider.WithTTL(cfg.CacheTTL))
	}
	client := marketdata.New(cfg.Endpoint, cfg.Convert, cfg.Limit, cfg.HTTPTimeout)
	return provider.New(client, provider.WithTTL(cfg.CacheTTL))
}

// runShow prints the text of a single widget. A failed fetch still prints
// what the widget shows, then reports the error.
func runShow(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p := newProvider(cmd, cfg)
	defer p.Close()

	w := ticker.NewWidget(p, cmd.String("coin"), cmd.String("show"))
	defer w.Detach()

	fetchErr := w.Activate(ctx)
	fmt.Fprintln(out, w.Text())
	if fetchErr != nil {
		return fmt.Errorf("fetch market data: %w", fetchErr)
	}
	return nil
}

// runWatch attaches every widget from the list to one provider and prints a
// line per widget whenever new data arrives.
func runWatch(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cmd.String("widgets")
	if path == "" {
		path = cfg.WidgetsFile
	}
	if path == "" {
		return fmt.Errorf("no widgets file: pass --widgets or set TICKER_WIDGETS")
	}
	specs, err := config.LoadWidgets(path)
	if err != nil {
		return err
	}
	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = cfg.CacheTTL
	}

	p := newProvider(cmd, cfg)
	defer p.Close()

	var (
		outMu sync.Mutex
		wg    sync.WaitGroup
	)
	emit := func(spec config.WidgetSpec, text string) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, "%-6s %-4s %s\n", spec.Coin, displayShow(spec.Show), text)
	}

	widgets := make([]*ticker.Widget, len(specs))
	for i, spec := range specs {
		w := ticker.NewWidget(p, spec.Coin, spec.Show)
		widgets[i] = w
		wg.Add(1)
		go func(spec config.WidgetSpec) {
			defer wg.Done()
			for text := range w.Updates() {
				emit(spec, text)
			}
		}(spec)
	}
	defer func() {
		for _, w := range widgets {
			w.Detach()
		}
		wg.Wait()
	}()

	for _, w := range widgets {
		go w.Activate(ctx)
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := p.GetOrFetch(ctx); err != nil {
				logger.Log.Warn("refresh failed", zap.Error(err))
			}
		}
	}
}

func displayShow(show string) string {
	if show == "" {
		return "USD"
	}
	return show
}
