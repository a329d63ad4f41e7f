package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Authentication is the polymorphic credential capability every provider
// translator consults before sending a request: a static API key, an
// OAuth-style bearer token that refreshes itself, or a CLI-issued token
// (spec §4.2's three Authentication variants, grounded on
// original_source/rust/models3/src/providers/openai/codex_cli.rs's
// CodexCli variant).
type Authentication interface {
	// Token returns the current credential value to send on the wire
	// (e.g. as an API key header or bearer token), refreshing it first if
	// it is expired.
	Token(ctx context.Context) (string, error)
}

// StaticKey is a credential that never changes for the process lifetime.
type StaticKey struct{ Key string }

// Token implements Authentication.
func (s StaticKey) Token(context.Context) (string, error) { return s.Key, nil }

// RefreshFunc fetches a fresh bearer token and its expiry.
type RefreshFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// OAuthToken is a bearer token that refreshes itself on expiry via Refresh,
// coalescing concurrent refreshes into a single in-flight call via
// golang.org/x/sync/singleflight so a burst of requests racing an expiry
// doesn't fire N refreshes at once.
type OAuthToken struct {
	Refresh RefreshFunc

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	group     singleflight.Group
}

// Token implements Authentication.
func (o *OAuthToken) Token(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.token != "" && time.Now().Before(o.expiresAt) {
		tok := o.token
		o.mu.Unlock()
		return tok, nil
	}
	o.mu.Unlock()

	type result struct {
		token string
		exp   time.Time
	}
	v, err, _ := o.group.Do("refresh", func() (any, error) {
		tok, exp, err := o.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.token = tok
		o.expiresAt = exp
		o.mu.Unlock()
		return result{token: tok, exp: exp}, nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: refresh oauth token: %w", err)
	}
	return v.(result).token, nil
}

// CodexCli authenticates using a token previously issued by an external CLI
// login flow (e.g. `codex login`), read from a local credentials file and
// refreshed the same way OAuthToken does. Reading that file is left to the
// RefreshFunc passed to NewCodexCli; CodexCli itself does not open it, does
// not consult OPENAI_API_KEY, and does not inspect the token's claims
// (decodeJWTClaims can read them, but nothing on this path calls it).
type CodexCli struct {
	oauth *OAuthToken
}

// NewCodexCli constructs a CodexCli authentication from a refresh function
// that re-reads the CLI's credentials file.
func NewCodexCli(refresh RefreshFunc) *CodexCli {
	return &CodexCli{oauth: &OAuthToken{Refresh: refresh}}
}

// Token implements Authentication.
func (c *CodexCli) Token(ctx context.Context) (string, error) { return c.oauth.Token(ctx) }

// jwtClaims is the subset of a JWT's claims this package reads for
// diagnostics (expiry, subject) without verifying the signature — the token
// is trusted because of where it came from (a local, OS-permissioned
// credentials file), not because its signature was checked here.
type jwtClaims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

// decodeJWTClaims extracts the claims segment of a JWT without verifying
// its signature, for expiry/subject display purposes only.
func decodeJWTClaims(token string) (jwtClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return jwtClaims{}, fmt.Errorf("llm: malformed jwt: expected 3 segments, got %d", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return jwtClaims{}, fmt.Errorf("llm: decode jwt payload: %w", err)
	}
	var claims jwtClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return jwtClaims{}, fmt.Errorf("llm: unmarshal jwt claims: %w", err)
	}
	return claims, nil
}
