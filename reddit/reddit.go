package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"beatframe/models"
	"beatframe/utils"
)

const (
	listingEndpoint = "https://www.reddit.com/r/%s/hot.json?limit=%d&raw_json=1"

	// Serves as the default subject when a session starts with no tags.
	defaultSubreddit = "popular"
)

type listingResponse struct {
	Data listingData `json:"data"`
}

type listingData struct {
	Children []listingChild `json:"children"`
}

type listingChild struct {
	Data post `json:"data"`
}

type post struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Over18   bool    `json:"over_18"`
	PostHint string  `json:"post_hint"`
	IsVideo  bool    `json:"is_video"`
	Stickied bool    `json:"stickied"`
	Preview  preview `json:"preview"`
	Media    media   `json:"media"`
}

type preview struct {
	Images []previewImage `json:"images"`
}

type previewImage struct {
	Source previewSource `json:"source"`
}

type previewSource struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type media struct {
	RedditVideo redditVideo `json:"reddit_video"`
}

type redditVideo struct {
	FallbackURL string `json:"fallback_url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Client fetches hot listings and maps them into canonical items. It is
// the secondary strategy in the rotation source chain.
type Client struct {
	client *http.Client
}

func NewClient(client *http.Client) *Client {
	return &Client{client: client}
}

func (c *Client) Name() string {
	return "reddit"
}

func (c *Client) Fetch(ctx context.Context, settings models.PlayerSettings, limit int) ([]models.MediaItem, error) {
	if limit <= 0 {
		limit = 40
	}

	subreddit := defaultSubreddit
	if tags := models.NormalizeTags(settings.Tags); len(tags) > 0 {
		subreddit = strings.Join(tags, "+")
	}
	listingURL := fmt.Sprintf(listingEndpoint, subreddit, limit)

	req, err := http.NewRequestWithContext(ctx, "GET", listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare listing request: %w", err)
	}
	req.Header = http.Header{
		"Accept":     []string{"application/json"},
		"User-Agent": []string{utils.UserAgent},
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to contact listing endpoint: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("listing endpoint returned status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing response: %w", err)
	}

	var listing listingResponse
	if err = json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse listing response: %w", err)
	}

	return mapListing(listing), nil
}

// mapListing keeps only posts that carry displayable media. Text posts and
// anything without a resolvable URL are dropped without failing the batch.
func mapListing(listing listingResponse) []models.MediaItem {
	items := make([]models.MediaItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		entry := child.Data
		if entry.Stickied {
			continue
		}

		item, ok := mapPost(entry)
		if !ok {
			slog.Debug("Dropping post with no resolvable media", slog.String("id", entry.ID))
			continue
		}
		items = append(items, item)
	}
	return items
}

func mapPost(entry post) (models.MediaItem, bool) {
	item := models.MediaItem{
		ID:     entry.ID,
		Nsfw:   entry.Over18,
		Source: "reddit",
	}

	if entry.IsVideo {
		playable := models.NormalizeURL(entry.Media.RedditVideo.FallbackURL)
		if playable == "" {
			return models.MediaItem{}, false
		}
		item.URL = playable
		item.Kind = models.KindVideo
		item.Width = entry.Media.RedditVideo.Width
		item.Height = entry.Media.RedditVideo.Height
		item.ThumbnailURL = previewURL(entry)
		return item, true
	}

	// Direct media links beat preview renditions when the extension is
	// recognisably displayable
	direct := models.NormalizeURL(entry.URL)
	if direct != "" && hasMediaExtension(direct) {
		item.URL = direct
		item.Kind = models.KindFromURL(direct)
		item.ThumbnailURL = previewURL(entry)
		if len(entry.Preview.Images) > 0 {
			item.Width = entry.Preview.Images[0].Source.Width
			item.Height = entry.Preview.Images[0].Source.Height
		}
		return item, true
	}

	if entry.PostHint == "image" {
		if source := previewURL(entry); source != "" {
			item.URL = source
			item.Kind = models.KindImage
			item.Width = entry.Preview.Images[0].Source.Width
			item.Height = entry.Preview.Images[0].Source.Height
			return item, true
		}
	}

	return models.MediaItem{}, false
}

func previewURL(entry post) string {
	if len(entry.Preview.Images) == 0 {
		return ""
	}
	return models.NormalizeURL(entry.Preview.Images[0].Source.URL)
}

func hasMediaExtension(raw string) bool {
	switch models.KindFromURL(raw) {
	case models.KindGif, models.KindVideo:
		return true
	}
	lowered := strings.ToLower(raw)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		if strings.Contains(lowered, ext) {
			return true
		}
	}
	return false
}
