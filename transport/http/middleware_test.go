package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/axiom/adapters/records"
	"github.com/layer-3/axiom/adapters/store"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enrollmentBody(tenant string) string {
	return fmt.Sprintf(`{"propertyId":7,"tenantAddress":%q,"tenantName":"Ada","agreedTermMonths":24}`, tenant)
}

func (s *testServer) enrollmentRows(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&records.EnrollmentRow{}).Count(&n).Error)
	return n
}

func TestRequireAddressMatchWithoutSession(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)

	rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", enrollmentBody(w.address))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeAuthRequired, decode(t, rec)["code"])
	assert.Zero(t, srv.enrollmentRows(t))
}

func TestRequireAddressMatchMismatch(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)
	other := newWallet(t)
	cookie := srv.signIn(t, w)

	rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", enrollmentBody(other.address), cookie)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, CodeAddressMismatch, body["code"])
	assert.Equal(t, w.address, body["authenticatedAddress"])
	assert.Zero(t, srv.enrollmentRows(t))

	// The session survives a rejected request
	assert.Equal(t, true, decode(t, srv.do(http.MethodGet, "/api/auth/siwe/session", "", cookie))["authenticated"])
}

func TestRequireAddressMatchIgnoresCase(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)
	cookie := srv.signIn(t, w)

	rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", enrollmentBody(strings.ToLower(w.address)), cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, srv.enrollmentRows(t))

	enrollment, _ := decode(t, rec)["enrollment"].(map[string]any)
	assert.Equal(t, w.address, enrollment["tenantAddress"])

	rec = srv.do(http.MethodPost, "/api/keygrow/enrollments", enrollmentBody(strings.ToUpper(w.address[2:])), cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code, "address without 0x prefix is malformed")

	rec = srv.do(http.MethodPost, "/api/keygrow/enrollments", enrollmentBody(w.address), cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.EqualValues(t, 1, srv.enrollmentRows(t))
}

func TestRequireAddressMatchFailsClosed(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)
	cookie := srv.signIn(t, w)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"number", `{"propertyId":7,"tenantAddress":123,"agreedTermMonths":24}`, http.StatusForbidden},
		{"object", `{"propertyId":7,"tenantAddress":{"a":1},"agreedTermMonths":24}`, http.StatusForbidden},
		{"garbage", `{"propertyId":7,"tenantAddress":"0xnothex","agreedTermMonths":24}`, http.StatusForbidden},
		{"invalid json", `{"propertyId":`, http.StatusBadRequest},
		{"array", `[1,2]`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", tt.body, cookie)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
	assert.Zero(t, srv.enrollmentRows(t))
}

func TestRequireAddressMatchAbsentFieldPasses(t *testing.T) {
	srv := newTestServer(t, nil)
	cookie := srv.signIn(t, newWallet(t))

	// The gate lets it through, validation in the handler rejects it
	rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", `{"propertyId":7,"agreedTermMonths":24}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Valid tenant wallet address is required", decode(t, rec)["error"])
}

func TestExpiredSessionIsNoSession(t *testing.T) {
	backing := store.NewMemoryStore()
	srv := newTestServer(t, backing)
	w := newWallet(t)

	require.NoError(t, backing.CreateSession(context.Background(), &core.Session{
		Token:           "expired-token",
		Address:         w.address,
		ChainID:         42161,
		AuthenticatedAt: time.Now().Add(-25 * time.Hour),
		ExpiresAt:       time.Now().Add(-time.Hour),
	}))
	cookie := &http.Cookie{Name: SessionCookie, Value: "expired-token"}

	rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", enrollmentBody(w.address), cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeAuthRequired, decode(t, rec)["code"])

	assert.Equal(t, false, decode(t, srv.do(http.MethodGet, "/api/auth/siwe/session", "", cookie))["authenticated"])
}

type brokenStore struct {
	ports.Store
}

func (brokenStore) GetSession(ctx context.Context, token string) (*core.Session, error) {
	return nil, errors.New("connection refused")
}

func TestGateStoreFailure(t *testing.T) {
	srv := newTestServer(t, brokenStore{Store: store.NewMemoryStore()})
	cookie := &http.Cookie{Name: SessionCookie, Value: "whatever"}

	rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", enrollmentBody(newWallet(t).address), cookie)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Authentication check failed", decode(t, rec)["error"])

	rec = srv.do(http.MethodGet, "/api/keygrow/enrollments?tenantAddress=0x52908400098527886E0F7030069857D2E4169EE7", "", cookie)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListEnrollmentsOwnOnly(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)
	other := newWallet(t)
	cookie := srv.signIn(t, w)

	require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/keygrow/enrollments", enrollmentBody(w.address), cookie).Code)

	rec := srv.do(http.MethodGet, "/api/keygrow/enrollments?tenantAddress="+strings.ToLower(w.address), "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	list, _ := decode(t, rec)["enrollments"].([]any)
	assert.Len(t, list, 1)

	rec = srv.do(http.MethodGet, "/api/keygrow/enrollments?tenantAddress="+other.address, "", cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(http.MethodGet, "/api/keygrow/enrollments?tenantAddress="+w.address, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodGet, "/api/keygrow/enrollments?tenantAddress="+w.address+"&propertyId=abc", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func grantBody(proposer string) string {
	return fmt.Sprintf(`{
		"proposerAddress": %q,
		"title": "Bridge monitoring",
		"description": %q,
		"category": "infrastructure",
		"requestedAmount": 25000
	}`, proposer, strings.Repeat("Fund a public dashboard for bridge health. ", 3))
}

func TestCreateGrantVerifiesInline(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)
	other := newWallet(t)

	rec := srv.do(http.MethodPost, "/api/governance/grants", grantBody(w.address))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeAuthRequired, decode(t, rec)["code"])

	cookie := srv.signIn(t, w)

	rec = srv.do(http.MethodPost, "/api/governance/grants", grantBody(other.address), cookie)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, w.address, decode(t, rec)["authenticatedAddress"])

	rec = srv.do(http.MethodPost, "/api/governance/grants", grantBody(strings.ToLower(w.address)), cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	grant, _ := decode(t, rec)["grant"].(map[string]any)
	assert.Equal(t, "voting", grant["status"])

	rec = srv.do(http.MethodGet, "/api/governance/grants", "")
	require.Equal(t, http.StatusOK, rec.Code)
	grants, _ := decode(t, rec)["grants"].([]any)
	require.Len(t, grants, 1)
	assert.Equal(t, "25000", grants[0].(map[string]any)["requestedAmount"])
}

func TestVerifyAddressExplicitFields(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)
	other := newWallet(t)
	cookie := srv.signIn(t, w)

	// ownerAddress precedes tenantAddress in the default order, but the
	// enrollment route only looks at tenantAddress
	body := fmt.Sprintf(`{"ownerAddress":%q,"propertyId":7,"tenantAddress":%q,"agreedTermMonths":24}`, other.address, w.address)
	rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", body, cookie)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRequireAddressMatchKeyCasing(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)
	other := newWallet(t)
	cookie := srv.signIn(t, w)

	tests := []struct {
		name string
		body string
	}{
		{"title case", fmt.Sprintf(`{"propertyId":7,"TenantAddress":%q,"agreedTermMonths":24}`, other.address)},
		{"upper case", fmt.Sprintf(`{"propertyId":7,"TENANTADDRESS":%q,"agreedTermMonths":24}`, other.address)},
		{"two casings", fmt.Sprintf(`{"propertyId":7,"tenantAddress":%q,"TenantAddress":%q,"agreedTermMonths":24}`, w.address, other.address)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", tt.body, cookie)
			require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			assert.Equal(t, CodeAddressMismatch, decode(t, rec)["code"])
		})
	}
	assert.Zero(t, srv.enrollmentRows(t))

	// A differently cased key naming the session wallet is still that wallet
	body := fmt.Sprintf(`{"propertyId":7,"TenantAddress":%q,"agreedTermMonths":24}`, strings.ToLower(w.address))
	rec := srv.do(http.MethodPost, "/api/keygrow/enrollments", body, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	enrollment, _ := decode(t, rec)["enrollment"].(map[string]any)
	assert.Equal(t, w.address, enrollment["tenantAddress"])
}

func TestCreateGrantKeyCasing(t *testing.T) {
	srv := newTestServer(t, nil)
	w := newWallet(t)
	other := newWallet(t)
	cookie := srv.signIn(t, w)

	body := strings.Replace(grantBody(other.address), `"proposerAddress"`, `"ProposerAddress"`, 1)
	rec := srv.do(http.MethodPost, "/api/governance/grants", body, cookie)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, w.address, decode(t, rec)["authenticatedAddress"])

	body = strings.Replace(grantBody(strings.ToLower(w.address)), `"proposerAddress"`, `"PROPOSERADDRESS"`, 1)
	rec = srv.do(http.MethodPost, "/api/governance/grants", body, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodGet, "/api/governance/grants", "")
	require.Equal(t, http.StatusOK, rec.Code)
	grants, _ := decode(t, rec)["grants"].([]any)
	require.Len(t, grants, 1)
	assert.Equal(t, w.address, grants[0].(map[string]any)["proposerAddress"])
}
