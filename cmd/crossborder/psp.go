package main

import (
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/norges-bank/cbdc-sandbox-cross-border/config"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger/evm"
	"github.com/norges-bank/cbdc-sandbox-cross-border/psp"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

func newPspCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "psp",
		Short: "run the originating service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPsp(cmd, flags)
		},
	}
}

func runPsp(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()
	log, err := newLogger(flags, "psp")
	if err != nil {
		return err
	}
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}

	key, err := evm.KeyFromKeystore(cfg.String(config.KeyKeystoreFile), cfg.String(config.KeyKeystorePassword))
	if err != nil {
		return err
	}
	chain, err := evm.Dial(ctx, evm.Config{
		RPCURL:          cfg.String(config.KeyRPCURL),
		ContractAddress: cfg.String(config.KeyHTLCAddress),
		TokenAddress:    cfg.String(config.KeyTokenAddress),
		Logger:          log,
	}, key)
	if err != nil {
		return err
	}
	defer chain.Close()

	db, err := store.Open(cfg.String(config.KeyDBPath))
	if err != nil {
		return err
	}
	records, err := store.NewOriginStore(db)
	if err != nil {
		return err
	}

	svc := psp.New(psp.Deps{
		Ledger:  chain,
		Records: records,
		Logger:  log,
	}, psp.Config{
		LockMaxDuration: cfg.LockMaxDuration,
	})

	e := echo.New()
	e.HideBanner = true
	svc.RegisterRoutes(e)

	log.Info().Str("addr", cfg.ListenAddr()).Msg("originating service starting")
	g, ctx := errgroup.WithContext(ctx)
	serve(ctx, g, e, cfg.ListenAddr())
	g.Go(func() error { return svc.RunCreatedListener(ctx) })
	return g.Wait()
}
