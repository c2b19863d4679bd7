package rotation

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"beatframe/models"
)

// Source is one strategy in the ordered fetch chain. Primary and secondary
// providers implement this; the orchestrator walks the list until one
// returns usable items.
type Source interface {
	Name() string
	Fetch(ctx context.Context, settings models.PlayerSettings, limit int) ([]models.MediaItem, error)
}

// StaticFallback is the terminal answer once every source and retry is
// exhausted. The player must always have something to rotate through.
func StaticFallback() []models.MediaItem {
	return []models.MediaItem{
		staticItem("https://upload.wikimedia.org/wikipedia/commons/3/3f/Fronalpstock_big.jpg", models.KindImage),
		staticItem("https://upload.wikimedia.org/wikipedia/commons/a/a2/Fourth_of_July_fireworks_behind_the_Washington_Monument%2C_1986.jpg", models.KindImage),
		staticItem("https://upload.wikimedia.org/wikipedia/commons/d/dd/Muybridge_race_horse_animated.gif", models.KindGif),
		staticItem("https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4", models.KindVideo),
	}
}

func staticItem(url string, kind models.MediaKind) models.MediaItem {
	return models.MediaItem{
		ID:     fmt.Sprintf("static:%s:%d", kind, xxhash.Sum64String(url)),
		URL:    url,
		Kind:   kind,
		Width:  800,
		Height: 600,
		Source: "static",
	}
}
