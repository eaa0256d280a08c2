package psp

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

// HeaderAuthSignature carries the signature for the secrets endpoint.
const HeaderAuthSignature = "X-Auth-Sig"

// SettlementRecord is the recipient-facing view of one settled or
// pending payment.
type SettlementRecord struct {
	TargetAddress  string    `json:"targetAddress"`
	SourceAddress  string    `json:"sourceAddress"`
	SourceCurrency string    `json:"sourceCurrency"`
	Amount         int64     `json:"amount"`
	Hash           string    `json:"hash"`
	Secret         string    `json:"secret"`
	PaymentID      string    `json:"paymentId"`
	CreatedAt      time.Time `json:"createdAt"`
	LockID         string    `json:"lockContract"`
}

// RegisterRoutes mounts the originating-service endpoints on e.
func (s *Service) RegisterRoutes(e *echo.Echo) {
	e.POST("/payment/discovery", s.handleDiscovery)
	e.GET("/secret/:address", s.handleSecretsByAddress)
}

func (s *Service) handleDiscovery(c echo.Context) error {
	var req crossborder.DiscoveryRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, crossborder.WrapError(crossborder.ErrCodeValidation, "decoding discovery request", err))
	}
	resp, err := s.Discovery(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleSecretsByAddress returns a recipient's settlement records. Only
// the wallet holder can read them: the caller proves control of the
// address by signing the current epoch minute.
func (s *Service) handleSecretsByAddress(c echo.Context) error {
	sig := c.Request().Header.Get(HeaderAuthSignature)
	if sig == "" {
		return c.NoContent(http.StatusForbidden)
	}
	address := c.Param("address")
	if !verifyMinuteSignature(address, sig, time.Now()) {
		s.log.Warn().Str("address", address).Msg("secrets request failed authentication")
		return c.NoContent(http.StatusForbidden)
	}

	recs, err := s.records.ByTargetAddress(c.Request().Context(), strings.ToLower(address))
	if err != nil {
		return s.writeError(c, err)
	}
	out := make([]SettlementRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, settlementRecord(rec))
	}
	return c.JSON(http.StatusOK, out)
}

func settlementRecord(rec store.OriginRecord) SettlementRecord {
	return SettlementRecord{
		TargetAddress:  rec.TargetAddress,
		SourceAddress:  rec.SourceAddress,
		SourceCurrency: rec.SourceCurrency,
		Amount:         rec.Amount,
		Hash:           rec.Hash,
		Secret:         rec.Secret,
		PaymentID:      rec.PaymentID,
		CreatedAt:      rec.CreatedAt,
		LockID:         rec.LockID,
	}
}

func (s *Service) writeError(c echo.Context, err error) error {
	status := crossborder.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	} else {
		s.log.Warn().Err(err).Str("path", c.Path()).Msg("request rejected")
	}
	return c.JSON(status, map[string]string{
		"error": err.Error(),
		"code":  crossborder.CodeOf(err),
	})
}
