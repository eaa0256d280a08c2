package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
)

// Token is an in-memory stand-in for the central-bank token contract,
// tracking balances and allowances per wallet.
type Token struct {
	mu         sync.Mutex
	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int
}

// NewToken creates an empty token ledger.
func NewToken() *Token {
	return &Token{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
	}
}

// SetBalance fixes a wallet's balance, for test setup.
func (t *Token) SetBalance(owner string, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[strings.ToLower(owner)] = new(big.Int).Set(amount)
}

// Client binds a wallet address to the token.
func (t *Token) Client(owner string) ledger.TokenClient {
	return &tokenClient{token: t, owner: strings.ToLower(owner)}
}

type tokenClient struct {
	token *Token
	owner string
}

func (c *tokenClient) BalanceOf(_ context.Context, owner string) (*big.Int, error) {
	t := c.token
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.balances[strings.ToLower(owner)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *tokenClient) Allowance(_ context.Context, owner, spender string) (*big.Int, error) {
	t := c.token
	t.mu.Lock()
	defer t.mu.Unlock()
	if m, ok := t.allowances[strings.ToLower(owner)]; ok {
		if a, ok := m[strings.ToLower(spender)]; ok {
			return new(big.Int).Set(a), nil
		}
	}
	return big.NewInt(0), nil
}

func (c *tokenClient) IncreaseAllowance(_ context.Context, spender string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("increase allowance: negative amount")
	}
	t := c.token
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.allowances[c.owner]
	if !ok {
		m = make(map[string]*big.Int)
		t.allowances[c.owner] = m
	}
	cur, ok := m[strings.ToLower(spender)]
	if !ok {
		cur = big.NewInt(0)
	}
	m[strings.ToLower(spender)] = new(big.Int).Add(cur, amount)
	return nil
}
