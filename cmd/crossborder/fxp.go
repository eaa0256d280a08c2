package main

import (
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/norges-bank/cbdc-sandbox-cross-border/config"
	"github.com/norges-bank/cbdc-sandbox-cross-border/fxp"
	"github.com/norges-bank/cbdc-sandbox-cross-border/hubclient"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger/evm"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

func newFxpCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fxp",
		Short: "run the liquidity-provider service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFxp(cmd, flags)
		},
	}
}

func runFxp(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()
	log, err := newLogger(flags, "fxp")
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
	outbound, err := store.NewRecordSet(db, "outbound_records")
	if err != nil {
		return err
	}
	inbound, err := store.NewRecordSet(db, "inbound_records")
	if err != nil {
		return err
	}

	hubCli := hubclient.New(hubclient.Config{
		HubURL:       cfg.String(config.KeyHubURL),
		GatewayURL:   cfg.String(config.KeyGatewayURL),
		SharedSecret: cfg.String(config.KeySharedSecret),
	})
	target, err := cfg.AllowanceTarget()
	if err != nil {
		return err
	}

	svc := fxp.New(fxp.Deps{
		Ledger:   chain,
		Token:    chain,
		Outbound: outbound,
		Inbound:  inbound,
		Hub:      hubCli,
		Logger:   log,
	}, fxp.Config{
		TokenAddress:    cfg.String(config.KeyTokenAddress),
		LockDuration:    cfg.LockMaxDuration,
		HopMargin:       cfg.HopMargin(),
		RefundGrace:     cfg.RefundGrace(),
		TargetAllowance: target,
	})
	if err := svc.RecoverRefundTimers(ctx); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	svc.RegisterRoutes(e)

	log.Info().Str("wallet", svc.Wallet()).Str("addr", cfg.ListenAddr()).Msg("liquidity provider starting")
	g, ctx := errgroup.WithContext(ctx)
	serve(ctx, g, e, cfg.ListenAddr())
	g.Go(func() error { return svc.RunWithdrawListener(ctx) })
	g.Go(func() error { return svc.RunAllowanceKeeper(ctx, cfg.AllowanceRefresh()) })
	return g.Wait()
}
