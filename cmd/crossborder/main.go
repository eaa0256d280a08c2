// Command crossborder runs one participant of the cross-border
// settlement network: the liquidity-provider service (fxp), the router
// (hub) or the originating service (psp).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "crossborder",
		Short:         "cross-border CBDC settlement services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	cmd.AddCommand(newFxpCmd(flags), newHubCmd(flags), newPspCmd(flags))
	return cmd
}

func newLogger(flags *rootFlags, service string) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(flags.logLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", flags.logLevel, err)
	}
	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger(), nil
}

// serve runs the echo server until ctx is cancelled, then drains it.
func serve(ctx context.Context, g *errgroup.Group, e *echo.Echo, addr string) {
	g.Go(func() error {
		if err := e.Start(addr); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
}
