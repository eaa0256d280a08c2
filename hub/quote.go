package hub

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

// Rate types carried in quote responses. Bid rates multiply the source
// amount; an effective rate is reported for assembled intermediated
// routes.
const (
	RateTypeBid       = "bid"
	RateTypeAsk       = "ask"
	RateTypeEffective = "effective"
)

// quotePrecision is the number of decimals quoted amounts are rounded
// to, with banker's rounding.
const quotePrecision = 2

// defaultQuoteExpiry bounds how long a quote may be acted on.
const defaultQuoteExpiry = 5 * time.Minute

// Corridor is one quotable currency pair served by a liquidity
// provider. Multiple corridors for the same pair are allowed; one is
// chosen at random per quote.
type Corridor struct {
	SourceCurrency string
	TargetCurrency string
	Rate           float64
	FxName         string
	SenderFx       crossborder.Party
	RecipientFx    crossborder.Party
}

// IntermediatedRoute describes the two-provider route the hub assembles
// for a corridor when intermediated settlement is enabled.
type IntermediatedRoute struct {
	SourceCurrency       string
	TargetCurrency       string
	IntermediateCurrency string
	FxName               string

	SenderFx                crossborder.Party
	IntermediateSenderFx    crossborder.Party
	IntermediateRecipientFx crossborder.Party
	RecipientFx             crossborder.Party
}

// QuoteConfig is the hub's rate table.
type QuoteConfig struct {
	Corridors []Corridor
	// Intermediated routes replace the direct corridor for their pair
	// when IntermediatedEnabled is set.
	Intermediated        []IntermediatedRoute
	IntermediatedEnabled bool
	// Expiry defaults to five minutes.
	Expiry time.Duration
}

// Quote prices a currency pair. Exactly one of the request's amounts
// must be set; the other side is derived from the corridor's bid rate
// and both amounts are returned rounded to quote precision.
func (s *Service) Quote(req crossborder.QuoteRequest) (crossborder.QuoteResponse, error) {
	if req.SourceCurrency == "" || req.TargetCurrency == "" {
		return crossborder.QuoteResponse{}, crossborder.Errorf(crossborder.ErrCodeValidation,
			"sourceCurrency and targetCurrency are required")
	}
	if (req.SourceAmount == "") == (req.TargetAmount == "") {
		return crossborder.QuoteResponse{}, crossborder.Errorf(crossborder.ErrCodeValidation,
			"exactly one of sourceAmount and targetAmount must be set")
	}

	corridor, err := s.pickCorridor(req.SourceCurrency, req.TargetCurrency)
	if err != nil {
		return crossborder.QuoteResponse{}, err
	}

	rate := decimal.NewFromFloat(corridor.Rate)
	var source, target decimal.Decimal
	if req.SourceAmount != "" {
		source, err = decimal.NewFromString(req.SourceAmount)
		if err != nil {
			return crossborder.QuoteResponse{}, crossborder.WrapError(crossborder.ErrCodeValidation,
				"invalid sourceAmount "+req.SourceAmount, err)
		}
		target = source.Mul(rate)
	} else {
		target, err = decimal.NewFromString(req.TargetAmount)
		if err != nil {
			return crossborder.QuoteResponse{}, crossborder.WrapError(crossborder.ErrCodeValidation,
				"invalid targetAmount "+req.TargetAmount, err)
		}
		source = target.Div(rate)
	}

	expiry := s.cfg.Quotes.Expiry
	if expiry == 0 {
		expiry = defaultQuoteExpiry
	}
	resp := crossborder.QuoteResponse{
		SourceCurrency:    req.SourceCurrency,
		TargetCurrency:    req.TargetCurrency,
		SourceAmount:      source.RoundBank(quotePrecision).String(),
		TargetAmount:      target.RoundBank(quotePrecision).String(),
		QuoteID:           uuid.NewString(),
		Rate:              corridor.Rate,
		RateType:          RateTypeBid,
		FxName:            corridor.FxName,
		SenderSystemFx:    corridor.SenderFx,
		RecipientSystemFx: corridor.RecipientFx,
		ExpiryTimestamp:   time.Now().UTC().Add(expiry),
	}

	if route, ok := s.intermediatedFor(req.SourceCurrency, req.TargetCurrency); ok {
		resp.RateType = RateTypeEffective
		resp.FxName = route.FxName
		resp.SenderSystemFx = route.SenderFx
		resp.RecipientSystemFx = route.RecipientFx
		resp.IntermediateCurrency = route.IntermediateCurrency
		resp.IntermediateAmount = resp.SourceAmount
		senderFx := route.IntermediateSenderFx
		recipientFx := route.IntermediateRecipientFx
		resp.IntermediateSenderFx = &senderFx
		resp.IntermediateRecipientFx = &recipientFx
	}

	s.log.Info().
		Str("quoteId", resp.QuoteID).
		Str("pair", req.SourceCurrency+"/"+req.TargetCurrency).
		Str("fxName", resp.FxName).
		Float64("rate", resp.Rate).
		Msg("quote issued")
	return resp, nil
}

func (s *Service) pickCorridor(source, target string) (Corridor, error) {
	var matches []Corridor
	for _, c := range s.cfg.Quotes.Corridors {
		if c.SourceCurrency == source && c.TargetCurrency == target {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return Corridor{}, crossborder.Errorf(crossborder.ErrCodeValidation,
			"currency pair %s/%s not supported", source, target)
	}
	return matches[rand.Intn(len(matches))], nil
}

func (s *Service) intermediatedFor(source, target string) (IntermediatedRoute, bool) {
	if !s.cfg.Quotes.IntermediatedEnabled {
		return IntermediatedRoute{}, false
	}
	for _, r := range s.cfg.Quotes.Intermediated {
		if r.SourceCurrency == source && r.TargetCurrency == target {
			return r, true
		}
	}
	return IntermediatedRoute{}, false
}
