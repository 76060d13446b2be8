package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := logger.InitConsole(); err != nil {
		panic("logger init: " + err.Error())
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ticker:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "ticker",
		Usage: "show cryptocurrency prices and changes",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "render one ticker and exit",
				Flags: append(sourceFlags(),
					&cli.StringFlag{Name: "coin", Usage: "coin symbol, e.g. btc", Required: true},
					&cli.StringFlag{Name: "show", Usage: "USD, EUR, 1h, 24h or 7d", Value: "USD"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runShow(ctx, cmd, out)
				},
			},
			{
				Name:  "watch",
				Usage: "keep a list of tickers updated",
				Flags: append(sourceFlags(),
					&cli.StringFlag{Name: "widgets", Usage: "YAML file listing the widgets"},
					&cli.DurationFlag{Name: "interval", Usage: "refresh interval (defaults to the cache TTL)"},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runWatch(ctx, cmd, out)
				},
			},
		},
	}
}

// sourceFlags selects where market data comes from. Unset flags fall back to
// the TICKER_* environment.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "endpoint", Usage: "market-data ticker endpoint"},
		&cli.BoolFlag{Name: "offline", Usage: "use the bundled sample data instead of the network"},
	}
}
