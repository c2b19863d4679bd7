package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"

	"beatframe/cache"
	"beatframe/config"
	"beatframe/events"
	"beatframe/models"
	"beatframe/preload"
	"beatframe/rotation"
	"beatframe/tempo"
)

type playerSession struct {
	settings  models.PlayerSettings
	sequencer *rotation.Sequencer
}

type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*playerSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*playerSession)}
}

func (r *sessionRegistry) get(id string) (*playerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

func (r *sessionRegistry) put(id string, session *playerSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = session
}

func (r *sessionRegistry) delete(id string) (*playerSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	return session, ok
}

func renderJSONMessage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	res := map[string]string{"message": message}
	json.NewEncoder(w).Encode(res)
}

func renderJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func RegisterRoutes(mux *http.ServeMux, cfg config.Config, app *application) http.Handler {

	events.Server.CreateStream("status")
	events.Server.CreateStream("tempo")

	registry := newSessionRegistry()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "Welcome to Beatframe, the media rotation backend for the visual metronome player.\n")
	})

	mux.HandleFunc("POST /api/session", func(w http.ResponseWriter, r *http.Request) {
		var settings models.PlayerSettings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			renderJSONError(w, http.StatusBadRequest, "request body is not valid settings JSON")
			return
		}
		if err := settings.Validate(); err != nil {
			renderJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		settings.Tags = models.NormalizeTags(settings.Tags)

		id := uuid.NewString()
		registry.put(id, &playerSession{
			settings:  settings,
			sequencer: rotation.NewSequencer(app.orchestrator, app.store),
		})

		slog.Info("Started player session",
			slog.String("session_id", id),
			slog.Any("tags", settings.Tags),
			slog.Bool("allow_nsfw", settings.AllowNsfw),
		)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	mux.HandleFunc("GET /api/session/{id}/next", func(w http.ResponseWriter, r *http.Request) {
		session, ok := registry.get(r.PathValue("id"))
		if !ok {
			renderJSONError(w, http.StatusNotFound, "no such session")
			return
		}

		item := session.sequencer.GetNextItem(r.Context(), session.settings)
		if item == nil {
			// Distinguishable "no content" answer. The UI shows a retry
			// affordance and clears the cache before trying again.
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(item)
	})

	mux.HandleFunc("POST /api/session/{id}/clear", func(w http.ResponseWriter, r *http.Request) {
		session, ok := registry.get(r.PathValue("id"))
		if !ok {
			renderJSONError(w, http.StatusNotFound, "no such session")
			return
		}
		session.sequencer.ClearCache()
		renderJSONMessage(w, "cache cleared")
	})

	mux.HandleFunc("DELETE /api/session/{id}", func(w http.ResponseWriter, r *http.Request) {
		session, ok := registry.delete(r.PathValue("id"))
		if !ok {
			renderJSONError(w, http.StatusNotFound, "no such session")
			return
		}
		session.sequencer.ClearCache()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/tempo", func(w http.ResponseWriter, r *http.Request) {
		slowest, err := strconv.Atoi(r.URL.Query().Get("slowest"))
		if err != nil {
			renderJSONError(w, http.StatusBadRequest, "slowest must be an integer")
			return
		}
		fastest, err := strconv.Atoi(r.URL.Query().Get("fastest"))
		if err != nil {
			renderJSONError(w, http.StatusBadRequest, "fastest must be an integer")
			return
		}

		bpm, err := app.picker.Pick(slowest, fastest)
		if err != nil {
			renderJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		payload, _ := json.Marshal(map[string]int{"bpm": bpm})
		events.Server.Publish("tempo", &sse.Event{Data: payload})

		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	})

	mux.HandleFunc("GET /api/preload", func(w http.ResponseWriter, r *http.Request) {
		url := models.NormalizeURL(r.URL.Query().Get("url"))
		if url == "" {
			renderJSONError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
			return
		}
		kind := models.MediaKind(r.URL.Query().Get("kind"))
		if kind == "" {
			kind = models.KindFromURL(url)
		}

		result, err := preload.Confirm(r.Context(), app.client, url, kind)
		response := struct {
			OK bool `json:"ok"`
			preload.Result
		}{OK: err == nil, Result: result}
		if err != nil {
			// Preload failures are advisory, so they travel as data rather
			// than an error status
			slog.Debug("Preload failed", slog.String("url", url), slog.String("stack", err.Error()))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("/events", events.Server.ServeHTTP)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Origins(),
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Origin, Content-Type, Accept"},
	})

	handler := c.Handler(mux)

	return handler
}

// application groups the constructed dependencies handed to the router.
type application struct {
	orchestrator *rotation.Orchestrator
	store        *cache.Store
	picker       *tempo.Picker
	client       *http.Client
}
