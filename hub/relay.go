package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

// relay forwards a raw message body to path on the named participant
// host and returns the participant's response body. The hub never
// interprets amounts or touches the ledger; it only moves messages.
func (s *Service) relay(ctx context.Context, host, path string, body []byte) ([]byte, error) {
	base, ok := s.lookupHost(host)
	if !ok {
		return nil, crossborder.Errorf(crossborder.ErrCodeValidation, "unknown forward host %q", host)
	}
	url := base + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, crossborder.WrapError(crossborder.ErrCodeRelay, "building relay request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, crossborder.WrapError(crossborder.ErrCodeRelay, "relaying to "+url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, crossborder.WrapError(crossborder.ErrCodeRelay, "reading relay response from "+url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, crossborder.Errorf(crossborder.ErrCodeRelay,
			"relay to %s returned status %d", url, resp.StatusCode)
	}
	s.log.Debug().Str("host", host).Str("path", path).Msg("message relayed")
	return respBody, nil
}

// checkEcho verifies that a relayed response acknowledges the same
// paymentId the forwarded instruction carried. A participant answering
// for a different payment indicates a broken relay and must not be
// passed through.
func checkEcho(respBody []byte, wantPaymentID string) error {
	var ack struct {
		PaymentID string `json:"paymentId"`
	}
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return crossborder.WrapError(crossborder.ErrCodeRelay, "decoding relay acknowledgement", err)
	}
	if ack.PaymentID == "" {
		return crossborder.Errorf(crossborder.ErrCodeRelay, "relay acknowledgement carries no paymentId")
	}
	if ack.PaymentID != wantPaymentID {
		return crossborder.Errorf(crossborder.ErrCodeRelay,
			"relay acknowledged payment %q, want %q", ack.PaymentID, wantPaymentID)
	}
	return nil
}

func instructionPaymentID(body []byte) (string, error) {
	var msg struct {
		PaymentInstruction struct {
			PaymentID string `json:"paymentId"`
		} `json:"paymentInstruction"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", crossborder.WrapError(crossborder.ErrCodeValidation, "decoding payment instruction", err)
	}
	if msg.PaymentInstruction.PaymentID == "" {
		return "", crossborder.Errorf(crossborder.ErrCodeValidation, "paymentInstruction.paymentId is required")
	}
	return msg.PaymentInstruction.PaymentID, nil
}

func ackBody(paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"paymentId":%q}`, paymentID))
}
