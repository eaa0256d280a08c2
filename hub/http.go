package hub

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xeipuuv/gojsonschema"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

// RegisterRoutes mounts the hub endpoints on e. Every route sits behind
// the shared-secret check and stamps the hub's own header value on the
// response.
func (s *Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("", s.headerMiddleware)
	g.POST("/quote", s.handleQuote)
	g.POST("/payment/discovery", s.handleDiscovery)
	g.POST("/payment/setup", s.handleSetup)
	g.POST("/payment/completion", s.handleCompletion)
}

func (s *Service) headerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(crossborder.HeaderShared, s.cfg.ResponseHeaderValue)
		got := c.Request().Header.Get(crossborder.HeaderShared)
		if got == "" || got != s.cfg.SharedSecret {
			s.log.Warn().Str("path", c.Path()).Msg("shared header missing or invalid")
			return c.NoContent(http.StatusForbidden)
		}
		return next(c)
	}
}

func (s *Service) handleQuote(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.writeError(c, crossborder.WrapError(crossborder.ErrCodeValidation, "reading request body", err))
	}
	if err := validateMessage(quoteRequestValidator, body); err != nil {
		return s.writeError(c, err)
	}
	var req crossborder.QuoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return s.writeError(c, crossborder.WrapError(crossborder.ErrCodeValidation, "decoding quote request", err))
	}
	resp, err := s.Quote(req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleDiscovery relays the discovery message and passes the
// originating service's response through unchanged.
func (s *Service) handleDiscovery(c echo.Context) error {
	body, host, err := s.readRelayRequest(c, discoveryRequestValidator)
	if err != nil {
		return s.writeError(c, err)
	}
	respBody, err := s.relay(c.Request().Context(), host, "/payment/discovery", body)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, respBody)
}

func (s *Service) handleSetup(c echo.Context) error {
	return s.relayWithEcho(c, setupRequestValidator, "/payment/setup")
}

func (s *Service) handleCompletion(c echo.Context) error {
	return s.relayWithEcho(c, completionRequestValidator, "/payment/completion")
}

// relayWithEcho forwards a payment message and verifies that the
// participant's acknowledgement names the same paymentId before
// answering the caller.
func (s *Service) relayWithEcho(c echo.Context, schema *gojsonschema.Schema, path string) error {
	body, host, err := s.readRelayRequest(c, schema)
	if err != nil {
		return s.writeError(c, err)
	}
	paymentID, err := instructionPaymentID(body)
	if err != nil {
		return s.writeError(c, err)
	}
	respBody, err := s.relay(c.Request().Context(), host, path, body)
	if err != nil {
		return s.writeError(c, err)
	}
	if err := checkEcho(respBody, paymentID); err != nil {
		return s.writeError(c, err)
	}
	return c.JSONBlob(http.StatusOK, ackBody(paymentID))
}

func (s *Service) readRelayRequest(c echo.Context, schema *gojsonschema.Schema) ([]byte, string, error) {
	host := c.Request().Header.Get(crossborder.HeaderForwardHost)
	if host == "" {
		return nil, "", crossborder.Errorf(crossborder.ErrCodeValidation,
			"missing %s header", crossborder.HeaderForwardHost)
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, "", crossborder.WrapError(crossborder.ErrCodeValidation, "reading request body", err)
	}
	if err := validateMessage(schema, body); err != nil {
		return nil, "", err
	}
	return body, host, nil
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
