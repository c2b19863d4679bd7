package redgifs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"beatframe/models"
	"beatframe/utils"
)

const (
	searchEndpoint   = "https://api.redgifs.com/v2/gifs/search"
	trendingEndpoint = "https://api.redgifs.com/v2/gifs/trending"
)

// Upstream type metadata. Everything served as "gif" here is really an
// mp4 loop, so it maps to the video kind unless only a .gif URL exists.
const (
	gifType   = 1
	imageType = 2
)

type searchResponse struct {
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
	Total int   `json:"total"`
	Gifs  []gif `json:"gifs"`
}

type gif struct {
	ID     string  `json:"id"`
	Type   int     `json:"type"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Urls   gifUrls `json:"urls"`
}

type gifUrls struct {
	HD        string `json:"hd"`
	SD        string `json:"sd"`
	Gif       string `json:"gif"`
	Poster    string `json:"poster"`
	Thumbnail string `json:"thumbnail"`
}

// Client fetches and maps search results. It satisfies rotation.Source.
type Client struct {
	client *http.Client
	tokens *TokenProvider
}

func NewClient(client *http.Client, tokens *TokenProvider) *Client {
	return &Client{client: client, tokens: tokens}
}

func (c *Client) Name() string {
	return "redgifs"
}

func (c *Client) Fetch(ctx context.Context, settings models.PlayerSettings, limit int) ([]models.MediaItem, error) {
	// Everything hosted here is explicit, so a safe-for-work session gets
	// an immediate zero-result answer and the chain moves on.
	if !settings.AllowNsfw {
		return nil, nil
	}

	endpoint := c.buildURL(settings, limit)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare search request: %w", err)
	}
	req.Header = http.Header{
		"Accept":     []string{"application/json"},
		"User-Agent": []string{utils.UserAgent},
	}
	if token := c.tokens.GetToken(ctx); token != AnonymousToken {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to contact search endpoint: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("search endpoint returned status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var searchResults searchResponse
	if err = json.Unmarshal(body, &searchResults); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return mapGifs(searchResults.Gifs), nil
}

func (c *Client) buildURL(settings models.PlayerSettings, limit int) string {
	if limit <= 0 {
		limit = 40
	}

	query := url.Values{}
	query.Set("count", fmt.Sprintf("%d", limit))
	query.Set("order", "trending")

	if len(settings.Tags) == 0 {
		return fmt.Sprintf("%s?%s", trendingEndpoint, query.Encode())
	}

	query.Set("search_text", strings.Join(models.NormalizeTags(settings.Tags), ","))
	return fmt.Sprintf("%s?%s", searchEndpoint, query.Encode())
}

// mapGifs normalises the upstream shape into canonical items. Entries
// without any resolvable URL are dropped, not surfaced as errors.
func mapGifs(gifs []gif) []models.MediaItem {
	items := make([]models.MediaItem, 0, len(gifs))
	for _, entry := range gifs {
		playable := models.NormalizeURL(firstNonEmpty(
			entry.Urls.HD,
			entry.Urls.SD,
			entry.Urls.Gif,
			entry.Urls.Poster,
		))
		if playable == "" {
			slog.Debug("Dropping entry with no resolvable URL", slog.String("id", entry.ID))
			continue
		}

		kind := models.KindFromURL(playable)
		switch entry.Type {
		case imageType:
			kind = models.KindImage
		case gifType:
			if kind == models.KindImage {
				kind = models.KindVideo
			}
		}

		items = append(items, models.MediaItem{
			ID:           entry.ID,
			URL:          playable,
			Kind:         kind,
			Width:        entry.Width,
			Height:       entry.Height,
			ThumbnailURL: models.NormalizeURL(firstNonEmpty(entry.Urls.Thumbnail, entry.Urls.Poster)),
			Nsfw:         true,
			Source:       "redgifs",
		})
	}
	return items
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}
