package crossborder

import (
	"encoding/json"
	"strings"
	"time"
)

// Party identifies one endpoint of a payment leg: a ledger wallet address
// and the host name under which the party's service is reachable through
// the hub's directory.
type Party struct {
	WalletAddress string `json:"walletAddress"`
	Host          string `json:"host"`
}

// SameWallet reports whether the party's wallet address equals addr.
// Ledger addresses are compared case-insensitively.
func (p Party) SameWallet(addr string) bool {
	return p.WalletAddress != "" && strings.EqualFold(p.WalletAddress, addr)
}

// PaymentInstruction is the immutable description of one cross-border
// payment, created by the originating service and relayed unchanged
// between every hop.
//
// A direct (PvP) instruction carries only the sender/recipient identity
// pairs. An intermediated (PvPvP) instruction additionally carries all
// four intermediate fields; presence of those fields is what makes an
// instruction intermediated, there is no explicit flag.
type PaymentInstruction struct {
	PaymentID string `json:"paymentId"`

	Sender    Party `json:"sender"`
	Recipient Party `json:"recipient"`

	SenderSystemFx    Party `json:"senderSystemFx"`
	RecipientSystemFx Party `json:"recipientSystemFx"`

	SourceCurrency string `json:"sourceCurrency"`
	TargetCurrency string `json:"targetCurrency"`
	SourceAmount   string `json:"sourceAmount"`
	TargetAmount   string `json:"targetAmount"`

	IntermediateCurrency    string `json:"intermediateCurrency,omitempty"`
	IntermediateAmount      string `json:"intermediateAmount,omitempty"`
	IntermediateSenderFx    *Party `json:"intermediateSenderFx,omitempty"`
	IntermediateRecipientFx *Party `json:"intermediateRecipientFx,omitempty"`
}

// RouteKind distinguishes the two supported route shapes.
type RouteKind int

const (
	// RouteDirect is a single-hop (PvP) route: one liquidity provider
	// bridges sender and recipient.
	RouteDirect RouteKind = iota
	// RouteIntermediated is a two-hop (PvPvP) route with an intermediate
	// leg between two liquidity providers.
	RouteIntermediated
)

func (k RouteKind) String() string {
	if k == RouteIntermediated {
		return "PvPvP"
	}
	return "PvP"
}

// Route returns the structurally derived route kind. An instruction is
// intermediated only when all four intermediate fields are present; a
// partially populated set of intermediate fields classifies as direct.
func (in PaymentInstruction) Route() RouteKind {
	if in.IntermediateCurrency != "" &&
		in.IntermediateAmount != "" &&
		in.IntermediateSenderFx != nil &&
		in.IntermediateRecipientFx != nil {
		return RouteIntermediated
	}
	return RouteDirect
}

// Encode serializes the instruction for persistence alongside a payment
// record.
func (in PaymentInstruction) Encode() (string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeInstruction is the inverse of Encode.
func DecodeInstruction(raw string) (PaymentInstruction, error) {
	var in PaymentInstruction
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return PaymentInstruction{}, err
	}
	return in, nil
}

// QuoteRequest asks the hub for a rate on a currency pair. Exactly one of
// SourceAmount/TargetAmount is set; the other side is derived from the
// quoted rate.
type QuoteRequest struct {
	SourceCurrency string `json:"sourceCurrency"`
	TargetCurrency string `json:"targetCurrency"`
	SourceAmount   string `json:"sourceAmount,omitempty"`
	TargetAmount   string `json:"targetAmount,omitempty"`
}

// QuoteResponse carries the quoted rate, both rounded amounts and the
// liquidity-provider endpoints for the route. The intermediate fields are
// populated only for intermediated quotes.
type QuoteResponse struct {
	SourceCurrency string  `json:"sourceCurrency"`
	TargetCurrency string  `json:"targetCurrency"`
	SourceAmount   string  `json:"sourceAmount"`
	TargetAmount   string  `json:"targetAmount"`
	QuoteID        string  `json:"quoteId"`
	Rate           float64 `json:"rate"`
	RateType       string  `json:"rateType"`
	FxName         string  `json:"fxName"`

	SenderSystemFx    Party `json:"senderSystemFx"`
	RecipientSystemFx Party `json:"recipientSystemFx"`

	IntermediateCurrency    string `json:"intermediateCurrency,omitempty"`
	IntermediateAmount      string `json:"intermediateAmount,omitempty"`
	IntermediateSenderFx    *Party `json:"intermediateSenderFx,omitempty"`
	IntermediateRecipientFx *Party `json:"intermediateRecipientFx,omitempty"`

	ExpiryTimestamp time.Time `json:"expiryTimestamp"`
}

// DiscoveryRequest starts a payment: the originating service generates the
// secret/hash pair for the instruction.
type DiscoveryRequest struct {
	PaymentInstruction PaymentInstruction `json:"paymentInstruction"`
}

// DiscoveryResponse returns the hashlock the sender must commit to and the
// maximum lock duration in milliseconds.
type DiscoveryResponse struct {
	HashOfSecret    string `json:"hashOfSecret"`
	LockMaxDuration int64  `json:"lockMaxDuration"`
	PaymentID       string `json:"paymentId"`
}

// SetupRequest asks a liquidity provider to create its outbound lock for
// the instruction. SenderSystemLockTimeout is the absolute expiry of the
// upstream lock, formatted per RFC 3339.
type SetupRequest struct {
	PaymentInstruction      PaymentInstruction `json:"paymentInstruction"`
	HashOfSecret            string             `json:"hashOfSecret"`
	SenderSystemLockTimeout string             `json:"senderSystemLockTimeout,omitempty"`
}

// SetupResponse acknowledges a completed lock creation.
type SetupResponse struct {
	PaymentID string `json:"paymentId"`
}

// LockedRequest notifies the next hop that a lock toward it now exists
// on-chain. The receiver must verify the referenced lock before trusting
// anything else in the message.
type LockedRequest struct {
	PaymentInstruction      PaymentInstruction `json:"paymentInstruction"`
	HashOfSecret            string             `json:"hashOfSecret"`
	SenderSystemLockTimeout string             `json:"senderSystemLockTimeout"`
	LockID                  string             `json:"lockId"`
}

// LockedResponse acknowledges a verified lock notification.
type LockedResponse struct {
	PaymentID string `json:"paymentId"`
}

// CompletionRequest propagates the revealed secret backward so the
// receiving party can withdraw its own upstream lock.
type CompletionRequest struct {
	PaymentInstruction PaymentInstruction `json:"paymentInstruction"`
	Secret             string             `json:"secret"`
}

// CompletionResponse acknowledges a successful withdrawal.
type CompletionResponse struct {
	PaymentID string `json:"paymentId"`
}
