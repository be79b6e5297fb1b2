package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jibon-roy/nano-db/core"
	"github.com/jibon-roy/nano-db/db"
)

var (
	errAuthRequired  = errors.New("authentication required: send AUTH JWT <token> or AUTH PASSWORD <user> <password>")
	errTokenExpired  = errors.New("token expired: authenticate again")
	errNotConfigured = errors.New("authentication not configured")
	errBadLogin      = errors.New("invalid username or password")
)

// AuthConfig configures server authentication.
type AuthConfig struct {
	// JWTSecret is the shared HMAC secret for AUTH JWT. Empty disables it.
	JWTSecret string
	// Issuer and Audience, when set, must match the token's iss and aud.
	Issuer   string
	Audience string
	// NameClaim and EmailClaim name the identity claims. They default to
	// "name" and "email".
	NameClaim  string
	EmailClaim string

	// CheckPassword validates AUTH PASSWORD. Nil disables it.
	CheckPassword func(user, password string) bool
}

// Required reports whether connections must authenticate before running
// commands.
func (ac *AuthConfig) Required() bool {
	return ac != nil && (ac.JWTSecret != "" || ac.CheckPassword != nil)
}

func (ac *AuthConfig) claimNames() (name, email string) {
	name, email = "name", "email"
	if ac.NameClaim != "" {
		name = ac.NameClaim
	}
	if ac.EmailClaim != "" {
		email = ac.EmailClaim
	}
	return name, email
}

// ConnectionState is what a connection knows about itself: its session and
// whether, and until when, it is authenticated.
type ConnectionState struct {
	session       *db.Session
	authenticated bool
	tokenExpiry   time.Time
}

// IsAuthenticated returns true if the connection has been authenticated.
func (cs *ConnectionState) IsAuthenticated() bool {
	return cs.authenticated
}

func (cs *ConnectionState) expired(now time.Time) bool {
	return !cs.tokenExpiry.IsZero() && now.After(cs.tokenExpiry)
}

// authUsage maps each AUTH method to its argument count and usage line.
var authUsage = map[string]struct {
	args  int
	usage string
}{
	"JWT":      {1, "AUTH JWT <token>"},
	"PASSWORD": {2, "AUTH PASSWORD <user> <password>"},
}

func isAuthCommand(line string) bool {
	word, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	return strings.EqualFold(word, "AUTH")
}

// parseAuthCommand splits "AUTH <method> <credentials...>" and checks the
// credential count for the method.
func parseAuthCommand(line string) (authType string, credentials []string, err error) {
	parts := strings.Fields(line)
	if len(parts) < 2 || !strings.EqualFold(parts[0], "AUTH") {
		return "", nil, errors.New("not an AUTH command")
	}

	authType = strings.ToUpper(parts[1])
	method, ok := authUsage[authType]
	if !ok {
		return "", nil, fmt.Errorf("unsupported auth type: %s", authType)
	}
	if len(parts)-2 != method.args {
		return "", nil, fmt.Errorf("invalid AUTH command: expected %s", method.usage)
	}
	return authType, parts[2:], nil
}

// verifyToken checks a signed token against the configured secret, issuer
// and audience and reads the identity from its claims.
func (s *Server) verifyToken(raw string) (core.Identity, time.Time, error) {
	if s.auth == nil || s.auth.JWTSecret == "" {
		return core.Identity{}, time.Time{}, errNotConfigured
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if s.auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.auth.Issuer))
	}
	if s.auth.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.auth.Audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.auth.JWTSecret), nil
	})
	if err != nil {
		return core.Identity{}, time.Time{}, fmt.Errorf("invalid token: %w", err)
	}

	nameClaim, emailClaim := s.auth.claimNames()
	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)
	if name == "" && email == "" {
		return core.Identity{}, time.Time{}, fmt.Errorf("token missing identity claims (%s or %s)", nameClaim, emailClaim)
	}

	var expiry time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}
	return core.Identity{Name: name, Email: email}, expiry, nil
}

// verifyPassword logs user in with the configured checker. The email of the
// identity is the server's default.
func (s *Server) verifyPassword(user, password string) (core.Identity, error) {
	if s.auth == nil || s.auth.CheckPassword == nil {
		return core.Identity{}, errNotConfigured
	}
	if !s.auth.CheckPassword(user, password) {
		return core.Identity{}, errBadLogin
	}
	return core.Identity{Name: user, Email: s.engine.Identity.Email}, nil
}

func (s *Server) handleAuth(line string, state *ConnectionState) Response {
	authType, credentials, err := parseAuthCommand(line)
	if err != nil {
		return authFailure(err)
	}

	var (
		identity core.Identity
		expiry   time.Time
	)
	if authType == "JWT" {
		identity, expiry, err = s.verifyToken(credentials[0])
	} else {
		identity, err = s.verifyPassword(credentials[0], credentials[1])
	}
	if err != nil {
		return authFailure(err)
	}

	state.session.Identity = identity
	state.authenticated = true
	state.tokenExpiry = expiry

	resp := AuthResponse{Authenticated: true, Identity: identity.String()}
	if !expiry.IsZero() {
		resp.ExpiresIn = int(time.Until(expiry).Seconds())
	}
	return successResponse("auth", resp)
}

func authFailure(err error) Response {
	return Response{Type: "auth", Error: err.Error()}
}
