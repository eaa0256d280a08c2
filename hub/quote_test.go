package hub

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

var (
	fxp1NO = crossborder.Party{WalletAddress: "0xf1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1", Host: "no.fxp1:8080"}
	fxp1SE = crossborder.Party{WalletAddress: "0xf1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1", Host: "se.fxp1:8080"}
	fxp2NO = crossborder.Party{WalletAddress: "0xf2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2", Host: "no.fxp2:8080"}
)

func testQuoteConfig() QuoteConfig {
	return QuoteConfig{
		Corridors: []Corridor{
			{SourceCurrency: "NOK", TargetCurrency: "SEK", Rate: 1.0448, FxName: "FXP1", SenderFx: fxp1NO, RecipientFx: fxp1SE},
			{SourceCurrency: "NOK", TargetCurrency: "ILS", Rate: 0.3383, FxName: "FXP1", SenderFx: fxp1NO, RecipientFx: fxp1NO},
			{SourceCurrency: "NOK", TargetCurrency: "NOK", Rate: 1.0, FxName: "FXP1", SenderFx: fxp1NO, RecipientFx: fxp1NO},
			{SourceCurrency: "NOK", TargetCurrency: "NOK", Rate: 1.0, FxName: "FXP2", SenderFx: fxp2NO, RecipientFx: fxp2NO},
		},
		Intermediated: []IntermediatedRoute{{
			SourceCurrency:          "NOK",
			TargetCurrency:          "NOK",
			IntermediateCurrency:    "NOK",
			FxName:                  "FXP1 + FXP2",
			SenderFx:                fxp1NO,
			IntermediateSenderFx:    fxp1NO,
			IntermediateRecipientFx: fxp2NO,
			RecipientFx:             fxp2NO,
		}},
	}
}

func testService(cfg QuoteConfig) *Service {
	return New(Config{
		SharedSecret:        "s3cret",
		ResponseHeaderValue: "hub",
		Quotes:              cfg,
		Logger:              zerolog.Nop(),
	})
}

func TestQuoteFromSourceAmount(t *testing.T) {
	svc := testService(testQuoteConfig())

	resp, err := svc.Quote(crossborder.QuoteRequest{
		SourceCurrency: "NOK",
		TargetCurrency: "SEK",
		SourceAmount:   "100",
	})
	require.NoError(t, err)
	assert.Equal(t, "100", resp.SourceAmount)
	assert.Equal(t, "104.48", resp.TargetAmount)
	assert.Equal(t, 1.0448, resp.Rate)
	assert.Equal(t, RateTypeBid, resp.RateType)
	assert.Equal(t, "FXP1", resp.FxName)
	assert.Equal(t, fxp1NO, resp.SenderSystemFx)
	assert.Equal(t, fxp1SE, resp.RecipientSystemFx)
	assert.NotEmpty(t, resp.QuoteID)
	assert.Nil(t, resp.IntermediateSenderFx)

	until := time.Until(resp.ExpiryTimestamp)
	assert.True(t, until > 4*time.Minute && until <= 5*time.Minute)
}

func TestQuoteFromTargetAmount(t *testing.T) {
	svc := testService(testQuoteConfig())

	resp, err := svc.Quote(crossborder.QuoteRequest{
		SourceCurrency: "NOK",
		TargetCurrency: "ILS",
		TargetAmount:   "33.83",
	})
	require.NoError(t, err)
	// A bid rate divides on the way back: 33.83 / 0.3383 = 100.
	assert.Equal(t, "100", resp.SourceAmount)
	assert.Equal(t, "33.83", resp.TargetAmount)
}

func TestQuoteUsesBankersRounding(t *testing.T) {
	svc := testService(QuoteConfig{
		Corridors: []Corridor{
			{SourceCurrency: "NOK", TargetCurrency: "NOK", Rate: 1.0, FxName: "FXP1", SenderFx: fxp1NO, RecipientFx: fxp1NO},
		},
	})

	resp, err := svc.Quote(crossborder.QuoteRequest{
		SourceCurrency: "NOK",
		TargetCurrency: "NOK",
		SourceAmount:   "100.125",
	})
	require.NoError(t, err)
	assert.Equal(t, "100.12", resp.TargetAmount)

	resp, err = svc.Quote(crossborder.QuoteRequest{
		SourceCurrency: "NOK",
		TargetCurrency: "NOK",
		SourceAmount:   "100.135",
	})
	require.NoError(t, err)
	assert.Equal(t, "100.14", resp.TargetAmount)
}

func TestQuotePicksAmongMatchingCorridors(t *testing.T) {
	svc := testService(testQuoteConfig())

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		resp, err := svc.Quote(crossborder.QuoteRequest{
			SourceCurrency: "NOK",
			TargetCurrency: "NOK",
			SourceAmount:   "100",
		})
		require.NoError(t, err)
		seen[resp.FxName] = true
	}
	assert.True(t, seen["FXP1"])
	assert.True(t, seen["FXP2"])
}

func TestQuoteIntermediatedAssembly(t *testing.T) {
	cfg := testQuoteConfig()
	cfg.IntermediatedEnabled = true
	svc := testService(cfg)

	resp, err := svc.Quote(crossborder.QuoteRequest{
		SourceCurrency: "NOK",
		TargetCurrency: "NOK",
		SourceAmount:   "100",
	})
	require.NoError(t, err)
	assert.Equal(t, RateTypeEffective, resp.RateType)
	assert.Equal(t, "FXP1 + FXP2", resp.FxName)
	assert.Equal(t, fxp1NO, resp.SenderSystemFx)
	assert.Equal(t, fxp2NO, resp.RecipientSystemFx)
	require.NotNil(t, resp.IntermediateSenderFx)
	require.NotNil(t, resp.IntermediateRecipientFx)
	assert.Equal(t, fxp1NO, *resp.IntermediateSenderFx)
	assert.Equal(t, fxp2NO, *resp.IntermediateRecipientFx)
	assert.Equal(t, "NOK", resp.IntermediateCurrency)
	assert.Equal(t, resp.SourceAmount, resp.IntermediateAmount)
}

func TestQuoteRejections(t *testing.T) {
	svc := testService(testQuoteConfig())

	_, err := svc.Quote(crossborder.QuoteRequest{SourceCurrency: "NOK", TargetCurrency: "USD", SourceAmount: "1"})
	require.Error(t, err)
	assert.Equal(t, crossborder.ErrCodeValidation, crossborder.CodeOf(err))

	_, err = svc.Quote(crossborder.QuoteRequest{SourceCurrency: "NOK", TargetCurrency: "SEK"})
	require.Error(t, err)

	_, err = svc.Quote(crossborder.QuoteRequest{
		SourceCurrency: "NOK", TargetCurrency: "SEK",
		SourceAmount: "1", TargetAmount: "1",
	})
	require.Error(t, err)
}
