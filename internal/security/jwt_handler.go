package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/vmscore"
)

// JWTClaims is the bearer-token payload the Control Surface expects:
// a subject user id and a role drawn from vmscore.UserRole.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	IAT    int64  `json:"iat"`
	EXP    int64  `json:"exp"`
}

// validRoles mirrors vmscore's role set; kept local to avoid this package
// depending on a wider vmscore surface than it needs.
var validRoles = map[string]bool{
	string(vmscore.RoleViewer):   true,
	string(vmscore.RoleOperator): true,
	string(vmscore.RoleAdmin):    true,
}

// JWTHandler validates bearer tokens issued by an external identity
// provider. Token issuance is out of scope for the core (SPEC_FULL §1) —
// this type only ever parses and verifies tokens presented by callers.
type JWTHandler struct {
	secretKey string
	logger    *logging.Logger
}

// NewJWTHandler builds a JWTHandler. secretKey must be non-empty.
func NewJWTHandler(secretKey string, logger *logging.Logger) (*JWTHandler, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("jwt secret key must be provided")
	}
	return &JWTHandler{secretKey: secretKey, logger: logger}, nil
}

// ValidateToken parses tokenString, restricting the signing method to
// HS256 to rule out algorithm-confusion attacks, and returns its claims if
// the signature, required fields, role, and expiry all check out.
func (h *JWTHandler) ValidateToken(tokenString string) (*JWTClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unsupported signing method: %v", token.Method.Alg())
		}
		return []byte(h.secretKey), nil
	})
	if err != nil {
		h.logger.WithError(err).Warn("bearer token validation failed")
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	for _, field := range []string{"user_id", "role", "iat", "exp"} {
		if _, exists := claims[field]; !exists {
			return nil, fmt.Errorf("missing required claim: %s", field)
		}
	}

	role, ok := claims["role"].(string)
	if !ok || !validRoles[role] {
		return nil, fmt.Errorf("invalid role claim: %v", claims["role"])
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid issued-at claim")
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid expiry claim")
	}
	if time.Now().Unix() > int64(exp) {
		return nil, fmt.Errorf("token has expired")
	}

	userID, _ := claims["user_id"].(string)
	return &JWTClaims{UserID: userID, Role: role, IAT: int64(iat), EXP: int64(exp)}, nil
}
