package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	now := time.Now()
	return signTestToken(t, testSecret, jwt.MapClaims{
		"user_id": "user-1",
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth_RejectsMissingHeader(t *testing.T) {
	h, err := NewJWTHandler(testSecret, logging.NewLogger("test"))
	require.NoError(t, err)

	handler := RequireAuth(h, logging.NewLogger("test"))(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/cameras", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_RejectsInvalidToken(t *testing.T) {
	h, err := NewJWTHandler(testSecret, logging.NewLogger("test"))
	require.NoError(t, err)

	handler := RequireAuth(h, logging.NewLogger("test"))(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/cameras", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_AcceptsValidBearerToken(t *testing.T) {
	h, err := NewJWTHandler(testSecret, logging.NewLogger("test"))
	require.NoError(t, err)

	var sawClaims *JWTClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := RequireAuth(h, logging.NewLogger("test"))(next)
	req := httptest.NewRequest(http.MethodGet, "/cameras", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "viewer"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sawClaims)
	assert.Equal(t, "viewer", sawClaims.Role)
}

func TestRequireMutatingRole_RejectsViewer(t *testing.T) {
	h, err := NewJWTHandler(testSecret, logging.NewLogger("test"))
	require.NoError(t, err)
	checker := NewPermissionChecker(map[string]bool{"operator": true, "admin": true})

	handler := RequireAuth(h, logging.NewLogger("test"))(
		RequireMutatingRole(checker, logging.NewLogger("test"))(okHandler()),
	)
	req := httptest.NewRequest(http.MethodPost, "/cameras", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "viewer"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireMutatingRole_AcceptsOperator(t *testing.T) {
	h, err := NewJWTHandler(testSecret, logging.NewLogger("test"))
	require.NoError(t, err)
	checker := NewPermissionChecker(map[string]bool{"operator": true, "admin": true})

	handler := RequireAuth(h, logging.NewLogger("test"))(
		RequireMutatingRole(checker, logging.NewLogger("test"))(okHandler()),
	)
	req := httptest.NewRequest(http.MethodPost, "/cameras", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "operator"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireMinRole_RejectsBelowMinimum(t *testing.T) {
	h, err := NewJWTHandler(testSecret, logging.NewLogger("test"))
	require.NoError(t, err)
	checker := NewPermissionChecker(nil)

	handler := RequireAuth(h, logging.NewLogger("test"))(
		RequireMinRole(checker, vmscore.RoleAdmin, logging.NewLogger("test"))(okHandler()),
	)
	req := httptest.NewRequest(http.MethodPost, "/system/purge", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "operator"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
