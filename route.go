package crossborder

// Role names the position a liquidity provider holds on a route, derived
// from which identity slot of the instruction its wallet address matches.
type Role int

const (
	// RoleSenderSide is the hop adjacent to the sender.
	RoleSenderSide Role = iota
	// RoleIntermediate is the middle hop of an intermediated route.
	RoleIntermediate
	// RoleRecipientSide is the hop adjacent to the recipient.
	RoleRecipientSide
)

func (r Role) String() string {
	switch r {
	case RoleSenderSide:
		return "sender-side"
	case RoleIntermediate:
		return "intermediate"
	default:
		return "recipient-side"
	}
}

// SetupLeg describes the outbound lock a party must create when handling
// a Setup message: who receives the lock, the amount and currency of this
// leg, how many locks sit downstream (each one adds a safety margin to the
// timelock), and whether the next hop must be notified with a Locked
// message once the lock exists.
type SetupLeg struct {
	Role           Role
	Receiver       Party
	Amount         string
	Currency       string
	DownstreamHops int
	NotifyNext     bool
	NextHost       string
}

// LockedLeg describes the inbound lock a party must verify when handling
// a Locked message: the expected on-chain sender and receiver, the amount
// and currency of this leg, and the host the Setup relay continues to.
type LockedLeg struct {
	Role        Role
	Sender      Party
	Receiver    Party
	Amount      string
	Currency    string
	ForwardHost string
}

// ClassifySetup resolves the caller's role for a Setup message by
// comparing self (the caller's wallet address) against the identity slots
// the instruction's route kind allows. Classification is total: it
// resolves to exactly one leg or fails with an unsupported_route error.
// A misclassified role could misroute funds, so no best-effort fallback
// exists.
func ClassifySetup(in PaymentInstruction, self string) (SetupLeg, error) {
	switch in.Route() {
	case RouteIntermediated:
		if in.IntermediateSenderFx.SameWallet(self) {
			return SetupLeg{
				Role:           RoleIntermediate,
				Receiver:       *in.IntermediateRecipientFx,
				Amount:         in.IntermediateAmount,
				Currency:       in.IntermediateCurrency,
				DownstreamHops: 1,
				NotifyNext:     true,
				NextHost:       in.IntermediateRecipientFx.Host,
			}, nil
		}
		if in.RecipientSystemFx.SameWallet(self) {
			return SetupLeg{
				Role:     RoleRecipientSide,
				Receiver: in.Recipient,
				Amount:   in.TargetAmount,
				Currency: in.TargetCurrency,
			}, nil
		}
		return SetupLeg{}, Errorf(ErrCodeUnsupportedRoute,
			"setup: neither intermediateSenderFx nor recipientSystemFx matches wallet %s", self)
	default:
		if !in.SenderSystemFx.SameWallet(self) && !in.RecipientSystemFx.SameWallet(self) {
			return SetupLeg{}, Errorf(ErrCodeUnsupportedRoute,
				"setup: no fx identity slot matches wallet %s", self)
		}
		return SetupLeg{
			Role:     RoleRecipientSide,
			Receiver: in.Recipient,
			Amount:   in.TargetAmount,
			Currency: in.TargetCurrency,
		}, nil
	}
}

// ClassifyLocked resolves the caller's role for a Locked message. The
// returned leg carries the counterparties the on-chain lock must match
// exactly.
func ClassifyLocked(in PaymentInstruction, self string) (LockedLeg, error) {
	switch in.Route() {
	case RouteIntermediated:
		if in.SenderSystemFx.SameWallet(self) {
			return LockedLeg{
				Role:        RoleSenderSide,
				Sender:      in.Sender,
				Receiver:    in.SenderSystemFx,
				Amount:      in.SourceAmount,
				Currency:    in.SourceCurrency,
				ForwardHost: in.IntermediateSenderFx.Host,
			}, nil
		}
		if in.IntermediateRecipientFx.SameWallet(self) {
			return LockedLeg{
				Role:        RoleIntermediate,
				Sender:      *in.IntermediateSenderFx,
				Receiver:    *in.IntermediateRecipientFx,
				Amount:      in.IntermediateAmount,
				Currency:    in.IntermediateCurrency,
				ForwardHost: in.RecipientSystemFx.Host,
			}, nil
		}
		return LockedLeg{}, Errorf(ErrCodeUnsupportedRoute,
			"locked: neither senderSystemFx nor intermediateRecipientFx matches wallet %s", self)
	default:
		if !in.SenderSystemFx.SameWallet(self) && !in.RecipientSystemFx.SameWallet(self) {
			return LockedLeg{}, Errorf(ErrCodeUnsupportedRoute,
				"locked: no fx identity slot matches wallet %s", self)
		}
		return LockedLeg{
			Role:        RoleSenderSide,
			Sender:      in.Sender,
			Receiver:    in.SenderSystemFx,
			Amount:      in.SourceAmount,
			Currency:    in.SourceCurrency,
			ForwardHost: in.RecipientSystemFx.Host,
		}, nil
	}
}

// CompletionForwardHost resolves where the revealed secret travels next
// once this party observed a withdrawal of a lock it created: the final
// hop notifies the intermediate, the intermediate notifies the
// sender-side hop, and on a direct route the secret goes straight back to
// the sender-side host.
func CompletionForwardHost(in PaymentInstruction, self string) (string, error) {
	if in.Route() == RouteIntermediated {
		if in.RecipientSystemFx.SameWallet(self) {
			return in.IntermediateRecipientFx.Host, nil
		}
		if in.IntermediateSenderFx.SameWallet(self) {
			return in.SenderSystemFx.Host, nil
		}
		return "", Errorf(ErrCodeUnsupportedRoute,
			"completion: neither recipientSystemFx nor intermediateSenderFx matches wallet %s", self)
	}
	return in.SenderSystemFx.Host, nil
}
