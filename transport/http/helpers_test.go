package http

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/layer-3/axiom/adapters/events"
	"github.com/layer-3/axiom/adapters/records"
	"github.com/layer-3/axiom/adapters/store"
	"github.com/layer-3/axiom/adapters/tokenizer"
	"github.com/layer-3/axiom/adapters/verifier"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/internal/eth"
	"github.com/layer-3/axiom/ports"
	"github.com/layer-3/axiom/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spruceid/siwe-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testHost = "app.axiom.test"

func init() {
	gin.SetMode(gin.TestMode)
}

// sessionCounter wraps a store and counts session inserts
type sessionCounter struct {
	ports.Store
	mu      sync.Mutex
	created int
}

func (s *sessionCounter) CreateSession(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	s.created++
	s.mu.Unlock()
	return s.Store.CreateSession(ctx, session)
}

func (s *sessionCounter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

type testServer struct {
	router   *gin.Engine
	store    *sessionCounter
	db       *gorm.DB
	registry *prometheus.Registry
}

type serverOption func(*Options)

func newTestServer(t *testing.T, backing ports.Store, opts ...serverOption) *testServer {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, records.AutoMigrate(db))

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, events.NewZapLogger(zap.NewNop()))
	t.Cleanup(func() { _ = pubsub.Close() })

	if backing == nil {
		backing = store.NewMemoryStore()
	}
	counted := &sessionCounter{Store: backing}

	auth := service.NewAuthService(
		tokenizer.NewJWTTokenizer(signKey),
		verifier.NewSIWEVerifier(),
		counted,
		events.NewWatermillPublisher(pubsub),
		zap.NewNop(),
		service.DefaultConfig(),
	)

	registry := prometheus.NewRegistry()
	o := Options{Logger: zap.NewNop(), Registry: registry}
	for _, opt := range opts {
		opt(&o)
	}

	router := SetupRouter(Services{
		Auth:        auth,
		Grants:      service.NewGrantService(records.NewGrantRepository(db), nil),
		Enrollments: service.NewEnrollmentService(records.NewEnrollmentRepository(db), nil),
	}, o)

	return &testServer{router: router, store: counted, db: db, registry: registry}
}

func (s *testServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Host = testHost
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) *wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

// siweMessage builds and signs a message claiming claimed, signed by w
func (w *wallet) siweMessage(t *testing.T, claimed, domain, nonce string, issuedAt time.Time) (string, string) {
	t.Helper()
	msg, err := siwe.InitMessage(domain, claimed, "https://"+domain, nonce, map[string]interface{}{
		"statement":      "Sign in to Axiom",
		"chainId":        42161,
		"issuedAt":       issuedAt.UTC().Format(time.RFC3339),
		"expirationTime": issuedAt.Add(5 * time.Minute).UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	sig, err := eth.SignText(w.key, []byte(msg.String()))
	require.NoError(t, err)
	return msg.String(), sig
}

func verifyBody(t *testing.T, message, signature string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{"message": message, "signature": signature})
	require.NoError(t, err)
	return string(b)
}

// challenge fetches a nonce and returns it with the challenge cookie
func (s *testServer) challenge(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	rec := s.do(http.MethodGet, "/api/auth/siwe/nonce", "")
	require.Equal(t, http.StatusOK, rec.Code)

	nonce, _ := decode(t, rec)["nonce"].(string)
	require.NotEmpty(t, nonce)

	cookie := cookieNamed(rec, ChallengeCookie)
	require.NotNil(t, cookie)
	return nonce, cookie
}

// signIn runs the full exchange for w and returns the session cookie
func (s *testServer) signIn(t *testing.T, w *wallet) *http.Cookie {
	t.Helper()
	nonce, challenge := s.challenge(t)
	message, sig := w.siweMessage(t, w.address, testHost, nonce, time.Now())

	rec := s.do(http.MethodPost, "/api/auth/siwe/verify", verifyBody(t, message, sig), challenge)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookie := cookieNamed(rec, SessionCookie)
	require.NotNil(t, cookie)
	return cookie
}
