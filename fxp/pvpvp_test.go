package fxp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
	"github.com/norges-bank/cbdc-sandbox-cross-border/hubclient"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger/ledgertest"
	"github.com/norges-bank/cbdc-sandbox-cross-border/store"
)

// fxpNetwork plays router and gateway for a set of in-process services:
// relayed Setup and Completion calls are dispatched by their forward
// host header, peer-direct Locked posts by the host in the path.
type fxpNetwork struct {
	srv *httptest.Server

	mu       sync.Mutex
	services map[string]*Service
}

func newFxpNetwork(t *testing.T) *fxpNetwork {
	t.Helper()
	n := &fxpNetwork{services: map[string]*Service{}}
	n.srv = httptest.NewServer(http.HandlerFunc(n.handle))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *fxpNetwork) register(host string, svc *Service) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.services[host] = svc
}

func (n *fxpNetwork) serviceFor(host string) *Service {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.services[host]
}

func (n *fxpNetwork) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/payment/setup":
		svc := n.serviceFor(r.Header.Get(crossborder.HeaderForwardHost))
		if svc == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req crossborder.SetupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp, err := svc.Setup(r.Context(), req)
		if err != nil {
			w.WriteHeader(crossborder.HTTPStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case r.URL.Path == "/payment/completion":
		svc := n.serviceFor(r.Header.Get(crossborder.HeaderForwardHost))
		if svc == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req crossborder.CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp, err := svc.Completion(r.Context(), req)
		if err != nil {
			w.WriteHeader(crossborder.HTTPStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case strings.HasSuffix(r.URL.Path, "/payment/locked"):
		host := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/payment/locked")
		svc := n.serviceFor(host)
		if svc == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req crossborder.LockedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := svc.Locked(r.Context(), req); err != nil {
			w.WriteHeader(crossborder.HTTPStatus(err))
			return
		}
		writeJSON(w, http.StatusCreated, crossborder.LockedResponse{PaymentID: req.PaymentInstruction.PaymentID})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (n *fxpNetwork) newService(t *testing.T, chain *ledgertest.Ledger, token *ledgertest.Token, wallet string) (*Service, *store.RecordSet, *store.RecordSet) {
	t.Helper()
	token.SetBalance(wallet, big.NewInt(10_000_000_000))

	db, err := store.Open(filepath.Join(t.TempDir(), "fxp.db"))
	require.NoError(t, err)
	outbound, err := store.NewRecordSet(db, "outbound_records")
	require.NoError(t, err)
	inbound, err := store.NewRecordSet(db, "inbound_records")
	require.NoError(t, err)

	cli := hubclient.New(hubclient.Config{
		HubURL:       n.srv.URL,
		GatewayURL:   n.srv.URL,
		SharedSecret: "s3cret",
	})
	svc := New(Deps{
		Ledger:   chain.Client(wallet),
		Token:    token.Client(wallet),
		Outbound: outbound,
		Inbound:  inbound,
		Hub:      cli,
		Logger:   zerolog.Nop(),
	}, Config{
		TokenAddress: tokenAddress,
		LockDuration: func() time.Duration { return time.Hour },
		RefundGrace:  50 * time.Millisecond,
		RefundRetry:  50 * time.Millisecond,
	})
	return svc, outbound, inbound
}

// Two providers settle an intermediated payment end to end on one
// chain: the first Locked notification fans out into a lock per hop
// with cascading expiries, and the recipient's withdrawal walks the
// secret back through both providers until every lock is claimed.
func TestIntermediatedSettlementAcrossTwoProviders(t *testing.T) {
	chain := ledgertest.New()
	token := ledgertest.NewToken()
	token.SetBalance(walletSender, big.NewInt(10_000_000_000))

	net := newFxpNetwork(t)
	svc1, out1, in1 := net.newService(t, chain, token, walletFxp1)
	svc2, out2, in2 := net.newService(t, chain, token, walletFxp2)
	net.register("no.fxp1:8080", svc1)
	net.register("no.fxp2:8080", svc2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc1.RunWithdrawListener(ctx) }()
	go func() { _ = svc2.RunWithdrawListener(ctx) }()
	// Give the subscriptions a moment to attach before any event fires.
	time.Sleep(20 * time.Millisecond)

	in := intermediatedInstruction()
	pair := mustPair(t)

	amount, err := crossborder.AmountToUnits(in.SourceAmount, in.SourceCurrency)
	require.NoError(t, err)
	expiry := crossborder.LockExpiry(time.Now(), time.Hour, crossborder.DefaultHopMargin, 2)
	lock1, err := chain.Client(walletSender).CreateLock(ctx, ledger.CreateLockParams{
		Receiver: walletFxp1,
		Hashlock: pair.Hash,
		Timelock: expiry,
		Token:    tokenAddress,
		Amount:   amount,
	})
	require.NoError(t, err)

	require.NoError(t, svc1.Locked(ctx, crossborder.LockedRequest{
		PaymentInstruction:      in,
		HashOfSecret:            pair.Hash,
		SenderSystemLockTimeout: expiry.Format(time.RFC3339),
		LockID:                  lock1,
	}))

	// The notification cascaded through both providers synchronously:
	// fxp1 locked toward fxp2, fxp2 locked toward the recipient.
	rec1, err := out1.ByPaymentID(ctx, in.PaymentID)
	require.NoError(t, err)
	rec2, err := out2.ByPaymentID(ctx, in.PaymentID)
	require.NoError(t, err)

	l1 := chain.Lock(lock1)
	l2 := chain.Lock(rec1.LockID)
	l3 := chain.Lock(rec2.LockID)
	require.True(t, l2.Exists())
	require.True(t, l3.Exists())
	assert.Equal(t, walletFxp2, l2.Receiver)
	assert.Equal(t, walletRecipient, l3.Receiver)
	assert.Equal(t, pair.Hash, l2.Hashlock)
	assert.Equal(t, pair.Hash, l3.Hashlock)

	// Each hop grants the next a strictly earlier expiry, one safety
	// margin apart.
	assert.True(t, l1.Timelock.After(l2.Timelock))
	assert.True(t, l2.Timelock.After(l3.Timelock))
	assert.InDelta(t, crossborder.DefaultHopMargin.Seconds(), l1.Timelock.Sub(l2.Timelock).Seconds(), 2)
	assert.InDelta(t, crossborder.DefaultHopMargin.Seconds(), l2.Timelock.Sub(l3.Timelock).Seconds(), 2)

	// The recipient claims the final lock; the revealed secret travels
	// back until the sender's original lock is withdrawn too.
	secretBytes, err := hex.DecodeString(pair.Secret)
	require.NoError(t, err)
	require.NoError(t, chain.Client(walletRecipient).Withdraw(ctx, rec2.LockID, secretBytes))

	require.Eventually(t, func() bool {
		rec, err := in1.ByLockID(ctx, lock1)
		return err == nil && rec.Status == store.StatusWithdrawn
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, chain.Lock(lock1).Withdrawn)
	assert.True(t, chain.Lock(rec1.LockID).Withdrawn)
	assert.True(t, chain.Lock(rec2.LockID).Withdrawn)

	for _, rs := range []*store.RecordSet{out1, out2} {
		rec, err := rs.ByPaymentID(ctx, in.PaymentID)
		require.NoError(t, err)
		assert.Equal(t, store.StatusWithdrawn, rec.Status)
		assert.Equal(t, pair.Secret, rec.Secret)
	}
	mid, err := in2.ByLockID(ctx, rec1.LockID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusWithdrawn, mid.Status)
}
