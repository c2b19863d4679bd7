package redgifs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"beatframe/utils"
)

const (
	temporaryTokenEndpoint = "https://api.redgifs.com/v2/auth/temporary"

	// AnonymousToken is the sentinel credential handed out when token
	// acquisition fails. Search endpoints degrade gracefully without auth
	// so downstream fetches always proceed with something.
	AnonymousToken = "anonymous"

	// Temporary tokens last about an hour. We renew a little early so an
	// interactive fetch never lands on a just-expired token.
	tokenLifetime = 50 * time.Minute

	// How long we sit on the anonymous sentinel before trying again.
	anonymousLifetime = time.Hour
)

type temporaryTokenResponse struct {
	Token string `json:"token"`
	Agent string `json:"agent"`
	Addr  string `json:"addr"`
}

// TokenProvider caches a short-lived anonymous credential and fails open:
// any acquisition error yields the anonymous sentinel with a fresh expiry
// window rather than an error.
type TokenProvider struct {
	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenProvider(client *http.Client) *TokenProvider {
	return &TokenProvider{
		client: client,
		now:    time.Now,
	}
}

func (p *TokenProvider) GetToken(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expiry) {
		return p.token
	}
	return p.acquireLocked(ctx)
}

// EnsureFresh renews the token when it is close to expiry. Driven by the
// background scheduler so interactive fetches rarely pay auth latency.
func (p *TokenProvider) EnsureFresh(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(10*time.Minute).Before(p.expiry) {
		return
	}
	p.acquireLocked(ctx)
}

func (p *TokenProvider) acquireLocked(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, "GET", temporaryTokenEndpoint, nil)
	if err != nil {
		return p.failOpenLocked(err)
	}
	req.Header = http.Header{
		"Accept":     []string{"application/json"},
		"User-Agent": []string{utils.UserAgent},
	}
	res, err := p.client.Do(req)
	if err != nil {
		return p.failOpenLocked(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		slog.Warn("Token endpoint returned bad status, continuing anonymously",
			slog.Int("status", res.StatusCode),
		)
		return p.anonymousLocked()
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return p.failOpenLocked(err)
	}

	var tokenResponse temporaryTokenResponse
	if err = json.Unmarshal(body, &tokenResponse); err != nil {
		return p.failOpenLocked(err)
	}
	if tokenResponse.Token == "" {
		slog.Warn("Token endpoint returned an empty token, continuing anonymously")
		return p.anonymousLocked()
	}

	p.token = tokenResponse.Token
	p.expiry = p.now().Add(tokenLifetime)
	slog.Debug("Acquired temporary token", slog.Time("expiry", p.expiry))
	return p.token
}

func (p *TokenProvider) failOpenLocked(err error) string {
	slog.Warn("Failed to acquire temporary token, continuing anonymously",
		slog.String("stack", err.Error()),
	)
	return p.anonymousLocked()
}

func (p *TokenProvider) anonymousLocked() string {
	p.token = AnonymousToken
	p.expiry = p.now().Add(anonymousLifetime)
	return p.token
}
