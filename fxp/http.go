package fxp

import (
	"net/http"

	"github.com/labstack/echo/v4"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

// RegisterRoutes mounts the protocol endpoints on e.
func (s *Service) RegisterRoutes(e *echo.Echo) {
	e.POST("/payment/setup", s.handleSetup)
	e.POST("/payment/locked", s.handleLocked)
	e.POST("/payment/completion", s.handleCompletion)
}

func (s *Service) handleSetup(c echo.Context) error {
	var req crossborder.SetupRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, crossborder.WrapError(crossborder.ErrCodeValidation, "decoding setup request", err))
	}
	resp, err := s.Setup(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Service) handleLocked(c echo.Context) error {
	var req crossborder.LockedRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, crossborder.WrapError(crossborder.ErrCodeValidation, "decoding locked request", err))
	}
	if err := s.Locked(c.Request().Context(), req); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, crossborder.LockedResponse{PaymentID: req.PaymentInstruction.PaymentID})
}

func (s *Service) handleCompletion(c echo.Context) error {
	var req crossborder.CompletionRequest
	if err := c.Bind(&req); err != nil {
		return s.writeError(c, crossborder.WrapError(crossborder.ErrCodeValidation, "decoding completion request", err))
	}
	resp, err := s.Completion(c.Request().Context(), req)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Service) writeError(c echo.Context, err error) error {
	status := crossborder.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	} else {
		s.log.Warn().Err(err).Str("path", c.Path()).Msg("request rejected")
	}
	return c.JSON(status, errorBody(err))
}

func errorBody(err error) map[string]string {
	body := map[string]string{"error": err.Error()}
	if code := crossborder.CodeOf(err); code != "" {
		body["code"] = code
	}
	return body
}
