/*
Dev-only JWT token generator for vms-core.

The core's JWTHandler only ever validates bearer tokens (token issuance is
delegated to an external auth module per SPEC_FULL §6.1); this tool signs a
token with the same HS256 claim shape so the Control Surface can be
exercised locally without standing up that auth module.

Usage:

	go run ./cmd/jwt-generator --role admin --expiry-hours 72
	go run ./cmd/jwt-generator --role viewer --expiry-hours 24 --secret-key "custom-secret"
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var validRoles = map[string]bool{"viewer": true, "operator": true, "admin": true}

var (
	role         = flag.String("role", "admin", "User role (viewer, operator, admin)")
	expiryHours  = flag.Int("expiry-hours", 48, "Token expiry in hours")
	secretKey    = flag.String("secret-key", "", "JWT secret key (must match the server's JWT_SECRET)")
	userID       = flag.String("user-id", "", "User ID (defaults to test_<role>)")
	outputFormat = flag.String("format", "token", "Output format: token, json")
)

func main() {
	flag.Parse()

	if !validRoles[*role] {
		fmt.Fprintf(os.Stderr, "Error: invalid role %q. Valid roles: viewer, operator, admin\n", *role)
		os.Exit(1)
	}
	if *expiryHours <= 0 {
		fmt.Fprintln(os.Stderr, "Error: expiry hours must be positive")
		os.Exit(1)
	}
	if *secretKey == "" {
		fmt.Fprintln(os.Stderr, "Error: --secret-key is required")
		os.Exit(1)
	}
	if *userID == "" {
		*userID = "test_" + *role
	}

	now := time.Now()
	expiresAt := now.Add(time.Duration(*expiryHours) * time.Hour)
	claims := jwt.MapClaims{
		"user_id": *userID,
		"role":    *role,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*secretKey))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to sign token: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		fmt.Printf("{\n  \"token\": %q,\n  \"user_id\": %q,\n  \"role\": %q,\n  \"expires_at\": %q\n}\n",
			token, *userID, *role, expiresAt.Format(time.RFC3339))
	case "token":
		fmt.Println(token)
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid output format %q. Valid formats: token, json\n", *outputFormat)
		os.Exit(1)
	}
}
