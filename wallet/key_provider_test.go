package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/internal/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedTx struct {
	chainID int64
	to      *common.Address
	value   *big.Int
	data    []byte
	gas     uint64
}

type fakeSender struct {
	sent []recordedTx
}

func (f *fakeSender) SendTransaction(ctx context.Context, key *ecdsa.PrivateKey, chainID int64, to *common.Address, value *big.Int, data []byte, gas uint64) (common.Hash, error) {
	f.sent = append(f.sent, recordedTx{chainID: chainID, to: to, value: value, data: data, gas: gas})
	return common.HexToHash("0xabc"), nil
}

func newKeyProvider(t *testing.T, opts ...KeyProviderOption) *KeyProvider {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewKeyProvider(key, 1, opts...)
}

func TestKeyProviderConnectAndSign(t *testing.T) {
	p := newKeyProvider(t)
	s := newTestSession(t, Providers{KindInjected: p})
	ctx := context.Background()

	// No grant yet
	assert.False(t, s.AutoReconnect(ctx))

	addr, err := s.Connect(ctx, KindInjected)
	require.NoError(t, err)
	assert.Equal(t, p.Address().Hex(), addr)
	assert.Equal(t, int64(1), s.State().ChainID)

	sig, err := s.Sign(ctx, "hello axiom")
	require.NoError(t, err)

	signer, err := eth.RecoverText([]byte("hello axiom"), sig)
	require.NoError(t, err)
	assert.Equal(t, p.Address(), signer)
}

func TestKeyProviderSwitchNetwork(t *testing.T) {
	p := newKeyProvider(t)
	s := newTestSession(t, Providers{KindInjected: p})
	ctx := context.Background()

	_, err := s.Connect(ctx, KindInjected)
	require.NoError(t, err)
	assert.False(t, s.OnExpectedNetwork())

	// Arbitrum is unknown to the key provider, so this goes through add-chain
	require.NoError(t, s.SwitchNetwork(ctx, core.ArbitrumOne.ChainID))
	assert.Equal(t, core.ArbitrumOne.ChainID, s.State().ChainID)
	assert.True(t, s.OnExpectedNetwork())

	// Now known, switching back and forth needs no add
	require.NoError(t, s.SwitchNetwork(ctx, 1))
	assert.Equal(t, int64(1), s.State().ChainID)
}

func TestKeyProviderRevokeAndClose(t *testing.T) {
	p := newKeyProvider(t)
	s := newTestSession(t, Providers{KindInjected: p})
	ctx := context.Background()

	_, err := s.Connect(ctx, KindInjected)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ListenerCount(EventAccountsChanged))

	p.Revoke()
	assert.False(t, s.State().IsConnected)
	assert.Zero(t, p.ListenerCount(EventAccountsChanged))

	_, err = s.Connect(ctx, KindInjected)
	require.NoError(t, err)
	p.Close()
	assert.False(t, s.State().IsConnected)
	assert.Zero(t, p.ListenerCount(EventDisconnect))
}

func TestKeyProviderSendTransaction(t *testing.T) {
	sender := &fakeSender{}
	p := newKeyProvider(t, WithSender(sender), WithAuthorized())
	s := newTestSession(t, Providers{KindInjected: p})
	ctx := context.Background()

	require.True(t, s.AutoReconnect(ctx))

	hash, err := s.SendTransaction(ctx, Tx{To: addrB, Value: big.NewInt(1000), Data: []byte{0x01}, Gas: 21000})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabc").Hex(), hash)

	require.Len(t, sender.sent, 1)
	tx := sender.sent[0]
	assert.Equal(t, int64(1), tx.chainID)
	assert.Equal(t, common.HexToAddress(addrB), *tx.to)
	assert.Equal(t, int64(1000), tx.value.Int64())
	assert.Equal(t, []byte{0x01}, tx.data)
	assert.Equal(t, uint64(21000), tx.gas)
}

func TestKeyProviderRejectsBadRequests(t *testing.T) {
	p := newKeyProvider(t)
	ctx := context.Background()

	_, err := p.Request(ctx, "eth_sendTransaction", TxParams{From: p.Address().Hex()})
	assertCode(t, err, CodeUnsupportedMethod)

	_, err = p.Request(ctx, "personal_sign", "0x00", addrB)
	assertCode(t, err, CodeUnauthorized)

	_, err = p.Request(ctx, "wallet_switchEthereumChain", SwitchChainParams{ChainID: "0xa4b1"})
	assertCode(t, err, CodeUnrecognizedChain)
	assert.ErrorIs(t, err, ErrUnknownNetwork)

	_, err = p.Request(ctx, "wallet_addEthereumChain", AddChainParams{ChainID: "0xa4b1"})
	assertCode(t, err, CodeInvalidParams)

	_, err = p.Request(ctx, "eth_getBalance")
	assertCode(t, err, CodeUnsupportedMethod)

	raw, err := p.Request(ctx, "eth_chainId")
	require.NoError(t, err)
	var id string
	require.NoError(t, json.Unmarshal(raw, &id))
	assert.Equal(t, "0x1", id)
}

func assertCode(t *testing.T, err error, code int) {
	t.Helper()
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, code, pe.Code)
}

func TestKeyProviderEmitsInRegistrationOrder(t *testing.T) {
	p := newKeyProvider(t)

	var order []int
	for i := 0; i < 16; i++ {
		p.On(EventAccountsChanged, func(json.RawMessage) { order = append(order, i) })
	}
	release := p.On(EventAccountsChanged, func(json.RawMessage) { order = append(order, -1) })
	release()

	p.Revoke()
	require.Len(t, order, 16)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}
