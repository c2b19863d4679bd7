package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	golobbyconfig "github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
	"github.com/joho/godotenv"

	"beatframe/cache"
	"beatframe/config"
	"beatframe/events"
	"beatframe/notify"
	"beatframe/reddit"
	"beatframe/redgifs"
	"beatframe/rotation"
	"beatframe/tempo"
	"beatframe/utils"
)

func main() {

	if err := godotenv.Load(); err != nil {
		fmt.Println(err)
	}

	var cfg config.Config
	if err := golobbyconfig.New().AddFeeder(feeder.Env{}).AddStruct(&cfg).Feed(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(),
	}))
	slog.SetDefault(logger)

	events.Init()

	client := utils.NewHTTPClient()
	tokens := redgifs.NewTokenProvider(client)

	sources := []rotation.Source{
		redgifs.NewClient(client, tokens),
		reddit.NewClient(client),
	}

	notifier := notify.Multi{notify.Log{}, notify.SSE{}}
	if cfg.Pushover.Token != "" && cfg.Pushover.Recipient != "" {
		notifier = append(notifier, notify.NewPushover(cfg.Pushover.Token, cfg.Pushover.Recipient))
	}

	store := cache.NewStore()
	app := &application{
		orchestrator: rotation.NewOrchestrator(sources, store, notifier),
		store:        store,
		picker:       tempo.NewPicker(uint64(time.Now().UnixNano())),
		client:       client,
	}

	scheduler, err := SetupInBackground(tokens)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if cfg.Beatframe.TokenJobEnabled {
		scheduler.Start()
		fmt.Println("Background jobs have started up in the background.")
	} else {
		fmt.Println("Background jobs are disabled.")
	}

	router := RegisterRoutes(http.NewServeMux(), cfg, app)

	listenAddr := cfg.Beatframe.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	fmt.Printf("Beatframe is running at http://localhost%s\n", listenAddr)

	if err := http.ListenAndServe(listenAddr, router); err != nil {
		fmt.Println(err)
		scheduler.Shutdown()
		os.Exit(1)
	}
}
