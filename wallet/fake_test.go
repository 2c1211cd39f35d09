package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"slices"
	"sync"
	"sync/atomic"
)

type response func(params []any) (any, error)

// fakeProvider answers scripted responses and records every call
type fakeProvider struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []string
	handlers  map[string]map[int]func(json.RawMessage)
	nextID    int
}

func newFakeProvider(accounts ...string) *fakeProvider {
	return &fakeProvider{
		responses: map[string]response{
			"eth_requestAccounts": func([]any) (any, error) { return accounts, nil },
			"eth_accounts":        func([]any) (any, error) { return accounts, nil },
			"eth_chainId":         func([]any) (any, error) { return "0xa4b1", nil },
		},
		handlers: make(map[string]map[int]func(json.RawMessage)),
	}
}

func (f *fakeProvider) respond(method string, r response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method] = r
}

func (f *fakeProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	r, ok := f.responses[method]
	f.mu.Unlock()

	if !ok {
		return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: method}
	}
	v, err := r(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (f *fakeProvider) On(event string, handler func(json.RawMessage)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	if f.handlers[event] == nil {
		f.handlers[event] = make(map[int]func(json.RawMessage))
	}
	f.handlers[event][id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[event], id)
	}
}

func (f *fakeProvider) emit(event string, payload any) {
	raw, _ := json.Marshal(payload)
	f.mu.Lock()
	ids := make([]int, 0, len(f.handlers[event]))
	for id := range f.handlers[event] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	var hs []func(json.RawMessage)
	for _, id := range ids {
		hs = append(hs, f.handlers[event][id])
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}

func (f *fakeProvider) listeners(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[event])
}

func (f *fakeProvider) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// lateEnvironment exposes its provider only after a number of probes
type lateEnvironment struct {
	provider Provider
	after    int32
	probes   atomic.Int32
}

func (e *lateEnvironment) Provider(kind ProviderKind) Provider {
	if kind != KindInjected {
		return nil
	}
	if e.probes.Add(1) <= e.after {
		return nil
	}
	return e.provider
}

// fakeBalances serves fixed balances, optionally blocking until released
type fakeBalances struct {
	mu      sync.Mutex
	native  map[string]*big.Int
	token   map[string]*big.Int
	err     error
	gate    chan struct{}
	started chan string
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{
		native: make(map[string]*big.Int),
		token:  make(map[string]*big.Int),
	}
}

func (b *fakeBalances) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	if b.started != nil {
		b.started <- address
	}
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if v, ok := b.native[address]; ok {
		return v, nil
	}
	return new(big.Int), nil
}

func (b *fakeBalances) TokenBalance(ctx context.Context, token, address string) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	if v, ok := b.token[address]; ok {
		return v, nil
	}
	return new(big.Int), nil
}

func milliEther(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return new(big.Int).Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))
}
