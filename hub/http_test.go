package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

const sharedSecret = "s3cret"

func instructionJSON(paymentID string) string {
	in := crossborder.PaymentInstruction{
		PaymentID:         paymentID,
		Sender:            crossborder.Party{WalletAddress: "0x1111111111111111111111111111111111111111"},
		Recipient:         crossborder.Party{WalletAddress: "0x2222222222222222222222222222222222222222"},
		SenderSystemFx:    fxp1NO,
		RecipientSystemFx: fxp1SE,
		SourceCurrency:    "NOK",
		TargetCurrency:    "SEK",
		SourceAmount:      "100",
		TargetAmount:      "104.48",
	}
	raw, _ := json.Marshal(in)
	return string(raw)
}

func setupBody(paymentID string) string {
	return `{"paymentInstruction":` + instructionJSON(paymentID) +
		`,"hashOfSecret":"` + strings.Repeat("ab", 32) + `"}`
}

// newHubServer wires a hub service onto an echo engine and returns the
// test server plus the participant stub acting as the relay target.
func newHubServer(t *testing.T, participant http.HandlerFunc) (*httptest.Server, *Service) {
	t.Helper()
	target := httptest.NewServer(participant)
	t.Cleanup(target.Close)

	svc := New(Config{
		SharedSecret:        sharedSecret,
		ResponseHeaderValue: "hub-response",
		Directory:           map[string]string{"no.fxp1:8080": target.URL},
		Quotes:              testQuoteConfig(),
		Logger:              zerolog.Nop(),
	})
	e := echo.New()
	svc.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, svc
}

func post(t *testing.T, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHubRejectsMissingOrWrongSharedSecret(t *testing.T) {
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp := post(t, srv.URL+"/quote", `{"sourceCurrency":"NOK","targetCurrency":"SEK","sourceAmount":"1"}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	// The hub identifies itself even on rejected calls.
	assert.Equal(t, "hub-response", resp.Header.Get(crossborder.HeaderShared))

	resp = post(t, srv.URL+"/quote", `{"sourceCurrency":"NOK","targetCurrency":"SEK","sourceAmount":"1"}`,
		map[string]string{crossborder.HeaderShared: "wrong"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHubQuoteEndpoint(t *testing.T) {
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp := post(t, srv.URL+"/quote", `{"sourceCurrency":"NOK","targetCurrency":"SEK","sourceAmount":"100"}`,
		map[string]string{crossborder.HeaderShared: sharedSecret})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var quote crossborder.QuoteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&quote))
	assert.Equal(t, "104.48", quote.TargetAmount)
}

func TestHubQuoteSchemaRejection(t *testing.T) {
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {})

	// Currency code not in ISO alpha form.
	resp := post(t, srv.URL+"/quote", `{"sourceCurrency":"nok","targetCurrency":"SEK","sourceAmount":"100"}`,
		map[string]string{crossborder.HeaderShared: sharedSecret})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHubRelaysSetupWithEchoCheck(t *testing.T) {
	var gotPath string
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"paymentId":"pay-1"}`))
	})

	resp := post(t, srv.URL+"/payment/setup", setupBody("pay-1"), map[string]string{
		crossborder.HeaderShared:      sharedSecret,
		crossborder.HeaderForwardHost: "no.fxp1:8080",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/payment/setup", gotPath)

	var ack crossborder.SetupResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, "pay-1", ack.PaymentID)
}

func TestHubRejectsEchoMismatch(t *testing.T) {
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"paymentId":"pay-other"}`))
	})

	resp := post(t, srv.URL+"/payment/setup", setupBody("pay-1"), map[string]string{
		crossborder.HeaderShared:      sharedSecret,
		crossborder.HeaderForwardHost: "no.fxp1:8080",
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHubRejectsUnknownForwardHost(t *testing.T) {
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp := post(t, srv.URL+"/payment/setup", setupBody("pay-1"), map[string]string{
		crossborder.HeaderShared:      sharedSecret,
		crossborder.HeaderForwardHost: "nowhere:9999",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHubRequiresForwardHostHeader(t *testing.T) {
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp := post(t, srv.URL+"/payment/setup", setupBody("pay-1"), map[string]string{
		crossborder.HeaderShared: sharedSecret,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHubSetupSchemaRejection(t *testing.T) {
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid message must not be relayed")
	})

	body := `{"paymentInstruction":` + instructionJSON("pay-1") + `,"hashOfSecret":"nothex"}`
	resp := post(t, srv.URL+"/payment/setup", body, map[string]string{
		crossborder.HeaderShared:      sharedSecret,
		crossborder.HeaderForwardHost: "no.fxp1:8080",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHubDiscoveryPassesResponseThrough(t *testing.T) {
	srv, _ := newHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hashOfSecret":"` + strings.Repeat("ab", 32) + `","lockMaxDuration":3600000,"paymentId":"pay-1"}`))
	})

	body := `{"paymentInstruction":` + instructionJSON("pay-1") + `}`
	resp := post(t, srv.URL+"/payment/discovery", body, map[string]string{
		crossborder.HeaderShared:      sharedSecret,
		crossborder.HeaderForwardHost: "no.fxp1:8080",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var disc crossborder.DiscoveryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&disc))
	assert.Equal(t, int64(3_600_000), disc.LockMaxDuration)
	assert.Equal(t, "pay-1", disc.PaymentID)
}
