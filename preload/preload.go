package preload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"time"

	color_extractor "github.com/marekm4/color-extractor"

	"beatframe/models"
	"beatframe/utils"
)

// VideoTimeout caps how long a video confirmation may take. Past it the
// preload resolves anyway so one slow resource can't stall the rotation
// timer indefinitely.
const VideoTimeout = 5 * time.Second

var videoTimeout = VideoTimeout

// Result carries what was learned while confirming the resource. Colours
// are the dominant colours of the decoded frame, for UI theming.
type Result struct {
	ContentType string   `json:"content_type,omitempty"`
	Colours     []string `json:"colours,omitempty"`
	TimedOut    bool     `json:"timed_out,omitempty"`
}

// Confirm resolves once the URL is confirmed loadable. It is advisory
// only: callers use it to avoid visible stalls, never as a correctness
// gate, so any error here must be treated as non-fatal.
func Confirm(ctx context.Context, client *http.Client, url string, kind models.MediaKind) (Result, error) {
	switch kind {
	case models.KindVideo:
		return confirmVideo(ctx, client, url)
	default:
		return confirmImage(ctx, client, url)
	}
}

func confirmImage(ctx context.Context, client *http.Client, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header = http.Header{
		"User-Agent": []string{utils.UserAgent},
	}
	res, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Result{}, fmt.Errorf("resource returned status %d", res.StatusCode)
	}

	var buf bytes.Buffer
	tee := io.TeeReader(res.Body, &buf)

	body, err := io.ReadAll(tee)
	if err != nil {
		return Result{}, err
	}

	mimeType := http.DetectContentType(body)

	decoded, _, err := image.Decode(&buf)
	if err != nil {
		return Result{}, fmt.Errorf("resource is not a decodable image: %w", err)
	}

	var domColours []string
	for _, c := range color_extractor.ExtractColors(decoded) {
		domColours = append(domColours, colorToHexString(c))
	}

	return Result{ContentType: mimeType, Colours: domColours}, nil
}

// confirmVideo only checks that the resource is reachable. Buffering a
// playable threshold is the player's job; a ranged probe is enough to
// know the URL won't 404 mid-rotation.
func confirmVideo(ctx context.Context, client *http.Client, url string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, videoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header = http.Header{
		"User-Agent": []string{utils.UserAgent},
		"Range":      []string{"bytes=0-1023"},
	}
	res, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("Video preload timed out, resolving anyway", slog.String("url", url))
			return Result{TimedOut: true}, nil
		}
		return Result{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Result{}, fmt.Errorf("resource returned status %d", res.StatusCode)
	}

	probe := make([]byte, 512)
	n, err := io.ReadFull(res.Body, probe)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("Video preload timed out, resolving anyway", slog.String("url", url))
			return Result{TimedOut: true}, nil
		}
		return Result{}, err
	}

	return Result{ContentType: http.DetectContentType(probe[:n])}, nil
}

func colorToHexString(c color.Color) string {
	r, g, b, a := c.RGBA()
	rgba := color.RGBA{uint8(r), uint8(g), uint8(b), uint8(a)}
	return fmt.Sprintf("#%.2x%.2x%.2x", rgba.R, rgba.G, rgba.B)
}
