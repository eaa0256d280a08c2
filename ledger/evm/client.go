// Package evm implements the ledger interfaces against the
// HashedTimeLockERC20 and central-bank token contracts deployed on an
// EVM-style chain, via go-ethereum. Event subscriptions require a
// websocket RPC endpoint.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/norges-bank/cbdc-sandbox-cross-border/ledger"
)

// Config wires a Client to a deployment.
type Config struct {
	// RPCURL is the chain endpoint. Must be a websocket URL when event
	// subscriptions are used.
	RPCURL string
	// ContractAddress is the deployed HashedTimeLockERC20 contract.
	ContractAddress string
	// TokenAddress is the deployed token contract.
	TokenAddress string
	// GasPrice overrides gas pricing; the sandbox chain runs with a
	// zero gas price. Nil leaves pricing to the node.
	GasPrice *big.Int
	// Logger for transaction lifecycle events.
	Logger zerolog.Logger
}

// Client implements ledger.Client and ledger.TokenClient on an EVM chain.
type Client struct {
	eth      *ethclient.Client
	htlc     *bind.BoundContract
	token    *bind.BoundContract
	contract common.Address
	tokenAdr common.Address
	key      *ecdsa.PrivateKey
	address  common.Address
	chainID  *big.Int
	gasPrice *big.Int
	log      zerolog.Logger
}

// Dial connects to the chain and binds the signing key.
func Dial(ctx context.Context, cfg Config, key *ecdsa.PrivateKey) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc %s: %w", cfg.RPCURL, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading chain id: %w", err)
	}
	contract := common.HexToAddress(cfg.ContractAddress)
	tokenAdr := common.HexToAddress(cfg.TokenAddress)
	return &Client{
		eth:      eth,
		htlc:     bind.NewBoundContract(contract, htlcABI, eth, eth, eth),
		token:    bind.NewBoundContract(tokenAdr, tokenABI, eth, eth, eth),
		contract: contract,
		tokenAdr: tokenAdr,
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		gasPrice: cfg.GasPrice,
		log:      cfg.Logger,
	}, nil
}

// KeyFromKeystore decrypts a go-ethereum keystore file.
func KeyFromKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keystore %s: %w", path, err)
	}
	k, err := keystore.DecryptKey(raw, password)
	if err != nil {
		return nil, fmt.Errorf("decrypting keystore %s: %w", path, err)
	}
	return k.PrivateKey, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.eth.Close() }

func (c *Client) Address() string         { return c.address.Hex() }
func (c *Client) ContractAddress() string { return c.contract.Hex() }

func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("building transactor: %w", err)
	}
	opts.Context = ctx
	if c.gasPrice != nil {
		opts.GasPrice = c.gasPrice
	}
	return opts, nil
}

// transact submits a state-changing call and blocks until the receipt
// confirms it.
func (c *Client) transact(ctx context.Context, bound *bind.BoundContract, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: waiting for tx %s: %w", method, tx.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s: tx %s reverted", method, tx.Hash())
	}
	c.log.Debug().Str("method", method).Str("tx", tx.Hash().Hex()).Msg("transaction confirmed")
	return receipt, nil
}

// CreateLock submits newContract and extracts the lock id from the
// HTLCERC20New log of the confirmed receipt.
func (c *Client) CreateLock(ctx context.Context, params ledger.CreateLockParams) (string, error) {
	hashlock, err := toBytes32(params.Hashlock)
	if err != nil {
		return "", fmt.Errorf("create lock: %w", err)
	}
	receipt, err := c.transact(ctx, c.htlc, "newContract",
		common.HexToAddress(params.Receiver),
		hashlock,
		big.NewInt(params.Timelock.Unix()),
		common.HexToAddress(params.Token),
		params.Amount,
	)
	if err != nil {
		return "", err
	}

	newEventID := htlcABI.Events["HTLCERC20New"].ID
	for _, lg := range receipt.Logs {
		if len(lg.Topics) > 0 && lg.Topics[0] == newEventID {
			return common.Hash(lg.Topics[1]).Hex(), nil
		}
	}
	return "", fmt.Errorf("create lock: receipt %s has no HTLCERC20New log", receipt.TxHash)
}

// GetLock reads the full lock state. Unknown ids come back as the
// zero-valued sentinel, mirroring the contract's behaviour.
func (c *Client) GetLock(ctx context.Context, lockID string) (ledger.Lock, error) {
	id, err := toBytes32(lockID)
	if err != nil {
		return ledger.Lock{}, fmt.Errorf("get lock: %w", err)
	}
	var out []interface{}
	if err := c.htlc.Call(&bind.CallOpts{Context: ctx}, &out, "getContract", id); err != nil {
		return ledger.Lock{}, fmt.Errorf("get lock %s: %w", lockID, err)
	}
	sender := out[0].(common.Address)
	if sender == (common.Address{}) {
		return ledger.Lock{}, nil
	}
	hashlock := out[4].([32]byte)
	preimage := out[8].([32]byte)
	return ledger.Lock{
		ID:           lockID,
		Sender:       sender.Hex(),
		Receiver:     out[1].(common.Address).Hex(),
		Token:        out[2].(common.Address).Hex(),
		Amount:       out[3].(*big.Int),
		Hashlock:     common.Hash(hashlock).Hex()[2:],
		Timelock:     time.Unix(out[5].(*big.Int).Int64(), 0).UTC(),
		Withdrawn:    out[6].(bool),
		Refunded:     out[7].(bool),
		Preimage:     preimage[:],
		SecretLength: int(out[9].(*big.Int).Int64()),
	}, nil
}

// Withdraw claims a lock with the preimage, padded to the contract's
// fixed preimage word.
func (c *Client) Withdraw(ctx context.Context, lockID string, preimage []byte) error {
	id, err := toBytes32(lockID)
	if err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	var word [32]byte
	if len(preimage) > len(word) {
		return fmt.Errorf("withdraw %s: preimage longer than %d bytes", lockID, len(word))
	}
	copy(word[:], preimage)
	_, err = c.transact(ctx, c.htlc, "withdraw", id, word)
	return err
}

// Refund returns an expired lock to its sender.
func (c *Client) Refund(ctx context.Context, lockID string) error {
	id, err := toBytes32(lockID)
	if err != nil {
		return fmt.Errorf("refund: %w", err)
	}
	_, err = c.transact(ctx, c.htlc, "refund", id)
	return err
}

// WatchWithdrawals subscribes to HTLCERC20Withdraw logs. The event only
// names the lock id; the preimage is read back from the contract before
// the event is delivered.
func (c *Client) WatchWithdrawals(ctx context.Context) (<-chan ledger.WithdrawEvent, error) {
	logs := make(chan types.Log, 32)
	sub, err := c.eth.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{htlcABI.Events["HTLCERC20Withdraw"].ID}},
	}, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribing to withdraw logs: %w", err)
	}

	out := make(chan ledger.WithdrawEvent, 32)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				c.log.Error().Err(err).Msg("withdraw log subscription failed")
				return
			case lg := <-logs:
				if len(lg.Topics) < 2 {
					continue
				}
				lockID := common.Hash(lg.Topics[1]).Hex()
				lock, err := c.GetLock(ctx, lockID)
				if err != nil {
					c.log.Error().Err(err).Str("lockId", lockID).Msg("reading withdrawn lock")
					continue
				}
				if !lock.Exists() {
					continue
				}
				select {
				case out <- ledger.WithdrawEvent{
					LockID:       lockID,
					Preimage:     lock.Preimage,
					SecretLength: lock.SecretLength,
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// WatchCreated subscribes to HTLCERC20New logs.
func (c *Client) WatchCreated(ctx context.Context) (<-chan ledger.CreatedEvent, error) {
	logs := make(chan types.Log, 32)
	sub, err := c.eth.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{htlcABI.Events["HTLCERC20New"].ID}},
	}, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribing to create logs: %w", err)
	}

	out := make(chan ledger.CreatedEvent, 32)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				c.log.Error().Err(err).Msg("create log subscription failed")
				return
			case lg := <-logs:
				if len(lg.Topics) < 4 {
					continue
				}
				var data struct {
					TokenContract common.Address
					Amount        *big.Int
					Hashlock      [32]byte
					Timelock      *big.Int
				}
				if err := htlcABI.UnpackIntoInterface(&data, "HTLCERC20New", lg.Data); err != nil {
					c.log.Error().Err(err).Msg("decoding HTLCERC20New log")
					continue
				}
				select {
				case out <- ledger.CreatedEvent{
					LockID:   common.Hash(lg.Topics[1]).Hex(),
					Sender:   common.HexToAddress(lg.Topics[2].Hex()).Hex(),
					Receiver: common.HexToAddress(lg.Topics[3].Hex()).Hex(),
					Token:    data.TokenContract.Hex(),
					Amount:   data.Amount,
					Hashlock: common.Hash(data.Hashlock).Hex()[2:],
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// BalanceOf reads the token balance of a wallet.
func (c *Client) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	var out []interface{}
	if err := c.token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.HexToAddress(owner)); err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", owner, err)
	}
	return out[0].(*big.Int), nil
}

// Allowance reads the token allowance an owner granted a spender.
func (c *Client) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	var out []interface{}
	if err := c.token.Call(&bind.CallOpts{Context: ctx}, &out, "allowance",
		common.HexToAddress(owner), common.HexToAddress(spender)); err != nil {
		return nil, fmt.Errorf("allowance %s->%s: %w", owner, spender, err)
	}
	return out[0].(*big.Int), nil
}

// IncreaseAllowance raises the spender's allowance and waits for
// confirmation.
func (c *Client) IncreaseAllowance(ctx context.Context, spender string, amount *big.Int) error {
	_, err := c.transact(ctx, c.token, "increaseAllowance", common.HexToAddress(spender), amount)
	return err
}

func toBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte
	if hexStr == "" {
		return out, fmt.Errorf("empty bytes32 value")
	}
	h := common.HexToHash(hexStr)
	copy(out[:], h[:])
	return out, nil
}

var (
	_ ledger.Client      = (*Client)(nil)
	_ ledger.TokenClient = (*Client)(nil)
)
