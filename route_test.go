package crossborder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletSender    = "0x1111111111111111111111111111111111111111"
	walletRecipient = "0x2222222222222222222222222222222222222222"
	walletFxp1      = "0xf1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1f1"
	walletFxp2      = "0xf2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2f2"
	walletStranger  = "0x9999999999999999999999999999999999999999"
)

func directInstruction() PaymentInstruction {
	return PaymentInstruction{
		PaymentID:         "pay-direct-1",
		Sender:            Party{WalletAddress: walletSender, Host: "no.psp1:8080"},
		Recipient:         Party{WalletAddress: walletRecipient, Host: "se.psp1:8080"},
		SenderSystemFx:    Party{WalletAddress: walletFxp1, Host: "no.fxp1:8080"},
		RecipientSystemFx: Party{WalletAddress: walletFxp1, Host: "se.fxp1:8080"},
		SourceCurrency:    "NOK",
		TargetCurrency:    "SEK",
		SourceAmount:      "100",
		TargetAmount:      "104.48",
	}
}

func intermediatedInstruction() PaymentInstruction {
	in := directInstruction()
	in.PaymentID = "pay-pvpvp-1"
	in.TargetCurrency = "NOK"
	in.TargetAmount = "100"
	in.RecipientSystemFx = Party{WalletAddress: walletFxp2, Host: "no.fxp2:8080"}
	in.IntermediateCurrency = "NOK"
	in.IntermediateAmount = "100"
	in.IntermediateSenderFx = &Party{WalletAddress: walletFxp1, Host: "no.fxp1:8080"}
	in.IntermediateRecipientFx = &Party{WalletAddress: walletFxp2, Host: "no.fxp2:8080"}
	return in
}

func TestRouteKind(t *testing.T) {
	assert.Equal(t, RouteDirect, directInstruction().Route())
	assert.Equal(t, RouteIntermediated, intermediatedInstruction().Route())

	// Dropping any one intermediate field makes the route direct again:
	// classification is structural, not declared.
	in := intermediatedInstruction()
	in.IntermediateCurrency = ""
	assert.Equal(t, RouteDirect, in.Route())

	in = intermediatedInstruction()
	in.IntermediateAmount = ""
	assert.Equal(t, RouteDirect, in.Route())

	in = intermediatedInstruction()
	in.IntermediateSenderFx = nil
	assert.Equal(t, RouteDirect, in.Route())

	in = intermediatedInstruction()
	in.IntermediateRecipientFx = nil
	assert.Equal(t, RouteDirect, in.Route())
}

func TestClassifySetupDirect(t *testing.T) {
	in := directInstruction()

	leg, err := ClassifySetup(in, walletFxp1)
	require.NoError(t, err)
	assert.Equal(t, RoleRecipientSide, leg.Role)
	assert.Equal(t, in.Recipient, leg.Receiver)
	assert.Equal(t, "104.48", leg.Amount)
	assert.Equal(t, "SEK", leg.Currency)
	assert.Equal(t, 0, leg.DownstreamHops)
	assert.False(t, leg.NotifyNext)

	_, err = ClassifySetup(in, walletStranger)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnsupportedRoute, CodeOf(err))
}

func TestClassifySetupIntermediated(t *testing.T) {
	in := intermediatedInstruction()

	leg, err := ClassifySetup(in, walletFxp1)
	require.NoError(t, err)
	assert.Equal(t, RoleIntermediate, leg.Role)
	assert.Equal(t, *in.IntermediateRecipientFx, leg.Receiver)
	assert.Equal(t, "100", leg.Amount)
	assert.Equal(t, "NOK", leg.Currency)
	assert.Equal(t, 1, leg.DownstreamHops)
	assert.True(t, leg.NotifyNext)
	assert.Equal(t, "no.fxp2:8080", leg.NextHost)

	leg, err = ClassifySetup(in, walletFxp2)
	require.NoError(t, err)
	assert.Equal(t, RoleRecipientSide, leg.Role)
	assert.Equal(t, in.Recipient, leg.Receiver)
	assert.Equal(t, 0, leg.DownstreamHops)
	assert.False(t, leg.NotifyNext)

	_, err = ClassifySetup(in, walletStranger)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnsupportedRoute, CodeOf(err))
}

func TestClassifyLockedDirect(t *testing.T) {
	in := directInstruction()

	leg, err := ClassifyLocked(in, walletFxp1)
	require.NoError(t, err)
	assert.Equal(t, RoleSenderSide, leg.Role)
	assert.Equal(t, in.Sender, leg.Sender)
	assert.Equal(t, in.SenderSystemFx, leg.Receiver)
	assert.Equal(t, "100", leg.Amount)
	assert.Equal(t, "NOK", leg.Currency)
	assert.Equal(t, "se.fxp1:8080", leg.ForwardHost)

	_, err = ClassifyLocked(in, walletStranger)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnsupportedRoute, CodeOf(err))
}

func TestClassifyLockedIntermediated(t *testing.T) {
	in := intermediatedInstruction()

	leg, err := ClassifyLocked(in, walletFxp1)
	require.NoError(t, err)
	assert.Equal(t, RoleSenderSide, leg.Role)
	assert.Equal(t, in.Sender, leg.Sender)
	assert.Equal(t, in.SenderSystemFx, leg.Receiver)
	assert.Equal(t, "100", leg.Amount)
	assert.Equal(t, "no.fxp1:8080", leg.ForwardHost)

	leg, err = ClassifyLocked(in, walletFxp2)
	require.NoError(t, err)
	assert.Equal(t, RoleIntermediate, leg.Role)
	assert.Equal(t, *in.IntermediateSenderFx, leg.Sender)
	assert.Equal(t, *in.IntermediateRecipientFx, leg.Receiver)
	assert.Equal(t, "no.fxp2:8080", leg.ForwardHost)

	_, err = ClassifyLocked(in, walletStranger)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnsupportedRoute, CodeOf(err))
}

func TestCompletionForwardHost(t *testing.T) {
	direct := directInstruction()
	host, err := CompletionForwardHost(direct, walletFxp1)
	require.NoError(t, err)
	assert.Equal(t, "no.fxp1:8080", host)

	in := intermediatedInstruction()
	host, err = CompletionForwardHost(in, walletFxp2)
	require.NoError(t, err)
	assert.Equal(t, "no.fxp2:8080", host)

	host, err = CompletionForwardHost(in, walletFxp1)
	require.NoError(t, err)
	assert.Equal(t, "no.fxp1:8080", host)

	_, err = CompletionForwardHost(in, walletStranger)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnsupportedRoute, CodeOf(err))
}

func TestWalletMatchIsCaseInsensitive(t *testing.T) {
	in := directInstruction()
	upper := "0XF1F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1F1"

	leg, err := ClassifySetup(in, upper)
	require.NoError(t, err)
	assert.Equal(t, RoleRecipientSide, leg.Role)
}
