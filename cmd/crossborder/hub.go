package main

import (
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/norges-bank/cbdc-sandbox-cross-border/config"
	"github.com/norges-bank/cbdc-sandbox-cross-border/hub"
)

func newHubCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hub",
		Short: "run the router service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHub(cmd, flags)
		},
	}
}

func runHub(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()
	log, err := newLogger(flags, "hub")
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}

	var quotes hub.QuoteConfig
	if err := cfg.Unmarshal("quotes", &quotes); err != nil {
		return err
	}
	quotes.IntermediatedEnabled = cfg.IntermediatedEnabled()
	quotes.Expiry = cfg.QuoteExpiry()

	svc := hub.New(hub.Config{
		SharedSecret:        cfg.String(config.KeySharedSecret),
		ResponseHeaderValue: cfg.String(config.KeyHubResponseHeader),
		Directory:           cfg.HubDirectory(),
		Quotes:              quotes,
		Logger:              log,
	})

	e := echo.New()
	e.HideBanner = true
	svc.RegisterRoutes(e)

	log.Info().Str("addr", cfg.ListenAddr()).Msg("hub starting")
	g, ctx := errgroup.WithContext(ctx)
	serve(ctx, g, e, cfg.ListenAddr())
	return g.Wait()
}
