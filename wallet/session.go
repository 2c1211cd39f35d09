package wallet

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/axiom/core"
	"go.uber.org/zap"
)

// Status is the connection lifecycle phase
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// State is the observable wallet connection
type State struct {
	Address      string
	ChainID      int64
	Provider     ProviderKind
	IsConnected  bool
	Balance      string
	TokenBalance string
}

func emptyState() State {
	return State{Balance: "0", TokenBalance: "0"}
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithNetwork sets the expected network, used for the add-chain descriptor
// and wrong-network warnings
func WithNetwork(n core.Network) Option {
	return func(s *Session) { s.network = n }
}

// WithBalances enables balance refresh. token may be empty to skip the token balance.
func WithBalances(reader BalanceReader, token string) Option {
	return func(s *Session) {
		s.balances = reader
		s.token = token
	}
}

// WithReconnectPolicy sets how long AutoReconnect waits for a provider
func WithReconnectPolicy(attempts int, delay time.Duration) Option {
	return func(s *Session) {
		s.attempts = attempts
		s.delay = delay
	}
}

// Session owns the lifecycle of one connected wallet and publishes its state
// to subscribers. Construct one per application and pass it down.
type Session struct {
	env      Environment
	log      *zap.Logger
	network  core.Network
	balances BalanceReader
	token    string
	attempts int
	delay    time.Duration

	mu         sync.Mutex
	state      State
	provider   Provider
	connecting bool
	epoch      uint64 // bumped whenever the provider binding changes
	releases   []func()
	subs       *list.List
}

// NewSession creates a disconnected session. env is the platform capability
// the session needs; a nil env yields ErrNoEnvironment.
func NewSession(env Environment, opts ...Option) (*Session, error) {
	if env == nil {
		return nil, ErrNoEnvironment
	}

	s := &Session{
		env:      env,
		log:      zap.NewNop(),
		network:  core.ArbitrumOne,
		attempts: 10,
		delay:    100 * time.Millisecond,
		state:    emptyState(),
		subs:     list.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns a snapshot of the connection
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the lifecycle phase
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state.IsConnected:
		return StatusConnected
	case s.connecting:
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}

// OnExpectedNetwork reports whether the wallet is on the configured network
func (s *Session) OnExpectedNetwork() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsConnected && s.state.ChainID == s.network.ChainID
}

// Subscribe registers fn to receive the full state after every change.
// Each call adds a new entry, even for the same function. The returned
// function removes it and may be called any number of times, including from
// inside fn.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	elem := s.subs.PushBack(fn)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.subs.Remove(elem)
			s.mu.Unlock()
		})
	}
}

// notify delivers the current state to a snapshot of the subscribers, in
// registration order, on the calling goroutine
func (s *Session) notify() {
	s.mu.Lock()
	state := s.state
	subs := make([]func(State), 0, s.subs.Len())
	for e := s.subs.Front(); e != nil; e = e.Next() {
		subs = append(subs, e.Value.(func(State)))
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// Connect requests account access from the provider of the given kind
func (s *Session) Connect(ctx context.Context, kind ProviderKind) (string, error) {
	switch kind {
	case KindMetaMask, KindInjected:
	case KindWalletConnect:
		return "", ErrWalletConnectUnsupported
	default:
		return "", fmt.Errorf("%w: unknown provider kind %q", ErrNoProvider, kind)
	}

	p := s.env.Provider(kind)
	if p == nil {
		return "", fmt.Errorf("%w: %s", ErrNoProvider, kind)
	}

	s.setConnecting(true)
	defer s.setConnecting(false)

	raw, err := p.Request(ctx, "eth_requestAccounts")
	if err != nil {
		return "", fmt.Errorf("failed to request accounts: %w", err)
	}

	address, err := firstAccount(raw)
	if err != nil {
		return "", err
	}

	chainID, err := requestChainID(ctx, p)
	if err != nil {
		return "", err
	}

	s.bind(p, kind, address, chainID)
	s.log.Info("wallet connected",
		zap.String("address", address),
		zap.Int64("chain_id", chainID),
		zap.String("provider", string(kind)))

	return address, nil
}

// AutoReconnect restores a connection the user granted earlier without
// prompting. It waits a bounded time for a provider to appear and reports
// whether a connection was restored.
func (s *Session) AutoReconnect(ctx context.Context) bool {
	var (
		p    Provider
		kind ProviderKind
	)
	for attempt := 0; ; attempt++ {
		p, kind = s.probe()
		if p != nil || attempt >= s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.delay):
		}
	}
	if p == nil {
		s.log.Debug("auto-reconnect: no wallet provider found")
		return false
	}

	raw, err := p.Request(ctx, "eth_accounts")
	if err != nil {
		s.log.Debug("auto-reconnect: account query failed", zap.Error(err))
		return false
	}

	address, err := firstAccount(raw)
	if err != nil {
		s.log.Debug("auto-reconnect: no existing grant", zap.Error(err))
		return false
	}

	chainID, err := requestChainID(ctx, p)
	if err != nil {
		s.log.Debug("auto-reconnect: chain query failed", zap.Error(err))
		return false
	}

	s.bind(p, kind, address, chainID)
	s.log.Info("wallet reconnected", zap.String("address", address), zap.Int64("chain_id", chainID))
	return true
}

func (s *Session) probe() (Provider, ProviderKind) {
	for _, kind := range []ProviderKind{KindInjected, KindMetaMask} {
		if p := s.env.Provider(kind); p != nil {
			return p, kind
		}
	}
	return nil, KindNone
}

// SwitchNetwork asks the wallet to switch to chainID, adding the configured
// network first if the wallet does not know it. The state follows the
// provider's chainChanged event.
func (s *Session) SwitchNetwork(ctx context.Context, chainID int64) error {
	p, _ := s.active()
	if p == nil {
		return ErrNotConnected
	}

	_, err := p.Request(ctx, "wallet_switchEthereumChain", SwitchChainParams{ChainID: core.HexChainID(chainID)})
	if err == nil {
		return nil
	}

	code, ok := providerCode(err)
	if !ok || !isUnknownChain(code) {
		return fmt.Errorf("failed to switch network: %w", err)
	}

	if chainID != s.network.ChainID {
		return fmt.Errorf("%w: no descriptor for chain %d", ErrUnknownNetwork, chainID)
	}

	// Adding the chain also switches to it; switch is not retried
	s.log.Info("network unknown to wallet, adding it", zap.Int64("chain_id", chainID))
	if _, err := p.Request(ctx, "wallet_addEthereumChain", NewAddChainParams(s.network)); err != nil {
		if errors.Is(err, ErrUserRejected) {
			return fmt.Errorf("failed to add network: %w", err)
		}
		return fmt.Errorf("%w: %v", ErrUnknownNetwork, err)
	}
	return nil
}

// Disconnect clears the connection and drops provider listeners. Calling it
// while disconnected does nothing.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.provider == nil && !s.state.IsConnected {
		s.mu.Unlock()
		return
	}
	releases := s.releases
	s.releases = nil
	s.provider = nil
	s.epoch++
	s.state = emptyState()
	s.mu.Unlock()

	for _, release := range releases {
		release()
	}

	s.log.Info("wallet disconnected")
	s.notify()
}

// Sign signs message with personal_sign and returns the hex signature
func (s *Session) Sign(ctx context.Context, message string) (string, error) {
	p, address := s.active()
	if p == nil {
		return "", ErrNotConnected
	}

	raw, err := p.Request(ctx, "personal_sign", hexutil.Encode([]byte(message)), address)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}

	var sig string
	if err := json.Unmarshal(raw, &sig); err != nil {
		return "", fmt.Errorf("unexpected personal_sign result: %w", err)
	}
	return sig, nil
}

// Tx is a transaction to send from the connected account
type Tx struct {
	To    string
	Value *big.Int
	Data  []byte
	Gas   uint64
}

// SendTransaction submits tx through the wallet and returns its hash
func (s *Session) SendTransaction(ctx context.Context, tx Tx) (string, error) {
	p, address := s.active()
	if p == nil {
		return "", ErrNotConnected
	}

	params := TxParams{From: address, To: tx.To}
	if tx.Value != nil {
		params.Value = hexutil.EncodeBig(tx.Value)
	}
	if len(tx.Data) > 0 {
		params.Data = hexutil.Encode(tx.Data)
	}
	if tx.Gas > 0 {
		params.Gas = hexutil.EncodeUint64(tx.Gas)
	}

	raw, err := p.Request(ctx, "eth_sendTransaction", params)
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", fmt.Errorf("unexpected eth_sendTransaction result: %w", err)
	}
	return hash, nil
}

// RefreshBalances reads balances for the current account. Failures keep the
// previous values.
func (s *Session) RefreshBalances(ctx context.Context) {
	s.mu.Lock()
	epoch, address := s.epoch, s.state.Address
	s.mu.Unlock()

	s.refresh(ctx, epoch, address)
}

func (s *Session) refreshAsync(epoch uint64, address string) {
	if s.balances == nil {
		return
	}
	go s.refresh(context.Background(), epoch, address)
}

func (s *Session) refresh(ctx context.Context, epoch uint64, address string) {
	if s.balances == nil || address == "" {
		return
	}

	native, err := s.balances.NativeBalance(ctx, address)
	if err != nil {
		s.log.Debug("failed to read native balance", zap.String("address", address), zap.Error(err))
		return
	}
	balance := FormatUnits(native, int32(s.network.Decimals))

	var tokenBalance string
	if s.token != "" {
		amount, err := s.balances.TokenBalance(ctx, s.token, address)
		if err != nil {
			s.log.Debug("failed to read token balance", zap.String("address", address), zap.Error(err))
		} else {
			tokenBalance = FormatUnits(amount, 18)
		}
	}

	s.mu.Lock()
	if s.epoch != epoch || s.state.Address != address {
		s.mu.Unlock()
		return
	}
	s.state.Balance = balance
	if tokenBalance != "" {
		s.state.TokenBalance = tokenBalance
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Session) active() (Provider, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsConnected {
		return nil, ""
	}
	return s.provider, s.state.Address
}

func (s *Session) setConnecting(v bool) {
	s.mu.Lock()
	s.connecting = v
	s.mu.Unlock()
}

// bind makes p the active provider. Listeners from any previous binding are
// released before the new ones are attached, subscribers are notified and a
// balance refresh starts in the background.
func (s *Session) bind(p Provider, kind ProviderKind, address string, chainID int64) {
	s.mu.Lock()
	previous := s.releases
	s.releases = nil
	s.epoch++
	epoch := s.epoch
	s.provider = p
	s.state = State{
		Address:      address,
		ChainID:      chainID,
		Provider:     kind,
		IsConnected:  true,
		Balance:      "0",
		TokenBalance: "0",
	}
	s.mu.Unlock()

	for _, release := range previous {
		release()
	}

	releases := []func(){
		p.On(EventAccountsChanged, func(payload json.RawMessage) { s.onAccountsChanged(epoch, payload) }),
		p.On(EventChainChanged, func(payload json.RawMessage) { s.onChainChanged(epoch, payload) }),
		p.On(EventDisconnect, func(json.RawMessage) { s.onDisconnect(epoch) }),
	}

	s.mu.Lock()
	if s.epoch == epoch {
		s.releases, releases = releases, nil
	}
	s.mu.Unlock()

	// Superseded while attaching
	for _, release := range releases {
		release()
	}

	s.notify()
	s.refreshAsync(epoch, address)
}

func (s *Session) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

func (s *Session) onAccountsChanged(epoch uint64, payload json.RawMessage) {
	if !s.current(epoch) {
		return
	}

	var accounts []string
	if err := json.Unmarshal(payload, &accounts); err != nil {
		s.log.Warn("malformed accountsChanged payload", zap.Error(err))
		return
	}
	if len(accounts) == 0 {
		s.Disconnect()
		return
	}

	address, err := core.NormalizeAddress(accounts[0])
	if err != nil {
		s.log.Warn("provider reported invalid account", zap.String("account", accounts[0]))
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if s.state.Address != address {
		// Balances belong to the previous account until a refresh lands
		s.state.Balance, s.state.TokenBalance = "0", "0"
	}
	s.state.Address = address
	s.mu.Unlock()

	s.log.Info("wallet account changed", zap.String("address", address))
	s.notify()
	s.refreshAsync(epoch, address)
}

func (s *Session) onChainChanged(epoch uint64, payload json.RawMessage) {
	if !s.current(epoch) {
		return
	}

	chainID, err := parseChainID(payload)
	if err != nil {
		s.log.Warn("malformed chainChanged payload", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.state.ChainID = chainID
	address := s.state.Address
	s.mu.Unlock()

	if chainID != s.network.ChainID {
		s.log.Warn("wallet is on an unexpected network",
			zap.Int64("chain_id", chainID),
			zap.Int64("expected", s.network.ChainID))
	}
	s.notify()
	s.refreshAsync(epoch, address)
}

func (s *Session) onDisconnect(epoch uint64) {
	if s.current(epoch) {
		s.Disconnect()
	}
}

func firstAccount(raw json.RawMessage) (string, error) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return "", fmt.Errorf("unexpected accounts result: %w", err)
	}
	if len(accounts) == 0 {
		return "", ErrNoAccounts
	}
	return core.NormalizeAddress(accounts[0])
}

func requestChainID(ctx context.Context, p Provider) (int64, error) {
	raw, err := p.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	return parseChainID(raw)
}

// parseChainID accepts a hex quantity string or a JSON number
func parseChainID(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			id, err := hexutil.DecodeUint64(strings.ToLower(s))
			if err != nil {
				return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
			}
			return int64(id), nil
		}
		raw = json.RawMessage(s)
	}

	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("invalid chain id %s", string(raw))
	}
	return id, nil
}
