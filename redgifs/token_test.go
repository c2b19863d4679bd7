package redgifs

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
)

func TestGetToken_FailsOpenOnBadStatus(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.redgifs.com").
		Get("/v2/auth/temporary").
		Reply(500)

	provider := NewTokenProvider(&http.Client{})

	token := provider.GetToken(context.Background())

	assert.Equal(t, AnonymousToken, token)
}

func TestGetToken_FailsOpenOnMalformedBody(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.redgifs.com").
		Get("/v2/auth/temporary").
		Reply(200).
		BodyString("not json")

	provider := NewTokenProvider(&http.Client{})

	token := provider.GetToken(context.Background())

	assert.Equal(t, AnonymousToken, token)
}

func TestGetToken_FailsOpenOnEmptyToken(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.redgifs.com").
		Get("/v2/auth/temporary").
		Reply(200).
		JSON(map[string]string{"token": ""})

	provider := NewTokenProvider(&http.Client{})

	token := provider.GetToken(context.Background())

	assert.Equal(t, AnonymousToken, token)
}

func TestGetToken_CachesUntilExpiry(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.redgifs.com").
		Get("/v2/auth/temporary").
		Reply(200).
		JSON(map[string]string{"token": "abc123"})

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	provider := NewTokenProvider(&http.Client{})
	provider.now = func() time.Time { return now }

	assert.Equal(t, "abc123", provider.GetToken(context.Background()))

	// No second mock is registered so a refetch would error and fall back
	// to the anonymous sentinel. Within the expiry window we should keep
	// serving the cached token instead.
	now = now.Add(30 * time.Minute)
	assert.Equal(t, "abc123", provider.GetToken(context.Background()))
}

func TestGetToken_AnonymousWindowPreventsHammering(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.redgifs.com").
		Get("/v2/auth/temporary").
		Reply(503)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	provider := NewTokenProvider(&http.Client{})
	provider.now = func() time.Time { return now }

	assert.Equal(t, AnonymousToken, provider.GetToken(context.Background()))

	// Still within the anonymous window, so the (unmocked) endpoint must
	// not be contacted again.
	now = now.Add(30 * time.Minute)
	assert.Equal(t, AnonymousToken, provider.GetToken(context.Background()))
}

func TestEnsureFresh_RenewsNearExpiry(t *testing.T) {
	defer gock.Off()

	gock.New("https://api.redgifs.com").
		Get("/v2/auth/temporary").
		Reply(200).
		JSON(map[string]string{"token": "first"})

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	provider := NewTokenProvider(&http.Client{})
	provider.now = func() time.Time { return now }

	assert.Equal(t, "first", provider.GetToken(context.Background()))

	gock.New("https://api.redgifs.com").
		Get("/v2/auth/temporary").
		Reply(200).
		JSON(map[string]string{"token": "second"})

	now = now.Add(45 * time.Minute)
	provider.EnsureFresh(context.Background())

	assert.Equal(t, "second", provider.GetToken(context.Background()))
}
