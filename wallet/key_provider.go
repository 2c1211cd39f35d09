package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/axiom/internal/eth"
)

// TxSender broadcasts transactions signed with a local key
type TxSender interface {
	SendTransaction(ctx context.Context, key *ecdsa.PrivateKey, chainID int64, to *common.Address, value *big.Int, data []byte, gas uint64) (common.Hash, error)
}

// KeyProvider is an EIP-1193 provider backed by a private key held in
// process. It serves headless agents and tests.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	sender  TxSender

	mu         sync.Mutex
	chainID    int64
	authorized bool
	known      map[int64]bool
	handlers   map[string]map[uint64]func(json.RawMessage)
	nextID     uint64
}

// KeyProviderOption configures a KeyProvider
type KeyProviderOption func(*KeyProvider)

// WithSender enables eth_sendTransaction through sender
func WithSender(sender TxSender) KeyProviderOption {
	return func(p *KeyProvider) { p.sender = sender }
}

// WithAuthorized makes eth_accounts return the account without a prior
// eth_requestAccounts, as after a grant in an earlier session
func WithAuthorized() KeyProviderOption {
	return func(p *KeyProvider) { p.authorized = true }
}

// NewKeyProvider creates a provider for key on chainID
func NewKeyProvider(key *ecdsa.PrivateKey, chainID int64, opts ...KeyProviderOption) *KeyProvider {
	p := &KeyProvider{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		known:    map[int64]bool{chainID: true},
		handlers: make(map[string]map[uint64]func(json.RawMessage)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Address returns the account address
func (p *KeyProvider) Address() common.Address {
	return p.address
}

// On implements Provider
func (p *KeyProvider) On(event string, handler func(json.RawMessage)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	if p.handlers[event] == nil {
		p.handlers[event] = make(map[uint64]func(json.RawMessage))
	}
	p.handlers[event][id] = handler

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handlers[event], id)
	}
}

// ListenerCount returns the number of handlers registered for event
func (p *KeyProvider) ListenerCount(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers[event])
}

// Revoke withdraws the account grant and emits accountsChanged with no accounts
func (p *KeyProvider) Revoke() {
	p.mu.Lock()
	p.authorized = false
	p.mu.Unlock()
	p.emit(EventAccountsChanged, []string{})
}

// Close emits disconnect
func (p *KeyProvider) Close() {
	p.emit(EventDisconnect, &ProviderError{Code: CodeDisconnected, Message: "provider closed"})
}

// Request implements Provider
func (p *KeyProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts":
		p.mu.Lock()
		p.authorized = true
		p.mu.Unlock()
		return json.Marshal([]string{p.address.Hex()})

	case "eth_accounts":
		p.mu.Lock()
		authorized := p.authorized
		p.mu.Unlock()
		if !authorized {
			return json.Marshal([]string{})
		}
		return json.Marshal([]string{p.address.Hex()})

	case "eth_chainId":
		p.mu.Lock()
		id := p.chainID
		p.mu.Unlock()
		return json.Marshal(hexutil.EncodeUint64(uint64(id)))

	case "personal_sign":
		return p.personalSign(params)

	case "wallet_switchEthereumChain":
		var req SwitchChainParams
		if err := decodeParam(params, 0, &req); err != nil {
			return nil, err
		}
		id, err := hexutil.DecodeUint64(req.ChainID)
		if err != nil {
			return nil, invalidParams("chainId: %v", err)
		}
		p.mu.Lock()
		known := p.known[int64(id)]
		p.mu.Unlock()
		if !known {
			return nil, &ProviderError{Code: CodeUnrecognizedChain, Message: fmt.Sprintf("Unrecognized chain ID %q", req.ChainID)}
		}
		p.switchTo(int64(id))
		return json.RawMessage("null"), nil

	case "wallet_addEthereumChain":
		var req AddChainParams
		if err := decodeParam(params, 0, &req); err != nil {
			return nil, err
		}
		id, err := hexutil.DecodeUint64(req.ChainID)
		if err != nil {
			return nil, invalidParams("chainId: %v", err)
		}
		if len(req.RPCURLs) == 0 {
			return nil, invalidParams("rpcUrls required")
		}
		p.mu.Lock()
		p.known[int64(id)] = true
		p.mu.Unlock()
		p.switchTo(int64(id))
		return json.RawMessage("null"), nil

	case "eth_sendTransaction":
		return p.sendTransaction(ctx, params)
	}

	return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: "unsupported method " + method}
}

func (p *KeyProvider) personalSign(params []any) (json.RawMessage, error) {
	var data, account string
	if err := decodeParam(params, 0, &data); err != nil {
		return nil, err
	}
	if err := decodeParam(params, 1, &account); err != nil {
		return nil, err
	}
	if !strings.EqualFold(account, p.address.Hex()) {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "account not authorized"}
	}

	msg := []byte(data)
	if decoded, err := hexutil.Decode(data); err == nil {
		msg = decoded
	}

	sig, err := eth.SignText(p.key, msg)
	if err != nil {
		return nil, &ProviderError{Code: CodeInternalError, Message: err.Error()}
	}
	return json.Marshal(sig)
}

func (p *KeyProvider) sendTransaction(ctx context.Context, params []any) (json.RawMessage, error) {
	if p.sender == nil {
		return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: "no RPC backend attached"}
	}

	var req TxParams
	if err := decodeParam(params, 0, &req); err != nil {
		return nil, err
	}
	if req.From != "" && !strings.EqualFold(req.From, p.address.Hex()) {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: "account not authorized"}
	}

	var to *common.Address
	if req.To != "" {
		if !common.IsHexAddress(req.To) {
			return nil, invalidParams("to: invalid address")
		}
		addr := common.HexToAddress(req.To)
		to = &addr
	}

	value := new(big.Int)
	if req.Value != "" {
		v, err := hexutil.DecodeBig(req.Value)
		if err != nil {
			return nil, invalidParams("value: %v", err)
		}
		value = v
	}

	var data []byte
	if req.Data != "" {
		d, err := hexutil.Decode(req.Data)
		if err != nil {
			return nil, invalidParams("data: %v", err)
		}
		data = d
	}

	var gas uint64
	if req.Gas != "" {
		g, err := hexutil.DecodeUint64(req.Gas)
		if err != nil {
			return nil, invalidParams("gas: %v", err)
		}
		gas = g
	}

	p.mu.Lock()
	chainID := p.chainID
	p.mu.Unlock()

	hash, err := p.sender.SendTransaction(ctx, p.key, chainID, to, value, data, gas)
	if err != nil {
		return nil, &ProviderError{Code: CodeInternalError, Message: err.Error()}
	}
	return json.Marshal(hash.Hex())
}

func (p *KeyProvider) switchTo(id int64) {
	p.mu.Lock()
	changed := p.chainID != id
	p.chainID = id
	p.mu.Unlock()

	if changed {
		p.emit(EventChainChanged, hexutil.EncodeUint64(uint64(id)))
	}
}

// emit calls the handlers for event outside the lock, in registration order
func (p *KeyProvider) emit(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}

	p.mu.Lock()
	ids := make([]uint64, 0, len(p.handlers[event]))
	for id := range p.handlers[event] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]func(json.RawMessage), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, p.handlers[event][id])
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(raw)
	}
}

// decodeParam decodes params[i] into out by round-tripping through JSON,
// which is how the values would cross a real provider boundary
func decodeParam(params []any, i int, out any) error {
	if i >= len(params) {
		return invalidParams("missing parameter %d", i)
	}
	raw, err := json.Marshal(params[i])
	if err != nil {
		return invalidParams("parameter %d: %v", i, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalidParams("parameter %d: %v", i, err)
	}
	return nil
}

func invalidParams(format string, args ...any) error {
	return &ProviderError{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}
