package notify

import (
	"encoding/json"
	"log/slog"

	"github.com/gregdel/pushover"
	"github.com/r3labs/sse/v2"

	"beatframe/events"
)

type Status string

const (
	StatusRetrying Status = "fetch_retrying"
	StatusFailed   Status = "fetch_failed"
	StatusEmpty    Status = "fetch_empty"
	StatusLoaded   Status = "fetch_loaded"
)

// Event describes a fetch state transition. Delivery is fire-and-forget:
// the rotation core never depends on a sink having received anything.
type Event struct {
	Status      Status `json:"status"`
	Source      string `json:"source,omitempty"`
	Attempt     int    `json:"attempt,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	Items       int    `json:"items,omitempty"`
	Message     string `json:"message,omitempty"`
}

type Notifier interface {
	Notify(event Event)
}

// Multi fans an event out to every sink. A slow or broken sink only
// affects itself.
type Multi []Notifier

func (m Multi) Notify(event Event) {
	for _, n := range m {
		n.Notify(event)
	}
}

// Log writes transitions to slog, which is always wired even when no
// other sink is configured.
type Log struct{}

func (Log) Notify(event Event) {
	attrs := []any{
		slog.String("status", string(event.Status)),
		slog.String("source", event.Source),
	}
	if event.Attempt > 0 {
		attrs = append(attrs,
			slog.Int("attempt", event.Attempt),
			slog.Int("max_attempts", event.MaxAttempts),
		)
	}
	switch event.Status {
	case StatusFailed:
		slog.Error("Fetch failed terminally", attrs...)
	case StatusRetrying:
		slog.Warn("Fetch retrying", attrs...)
	case StatusEmpty:
		slog.Warn("Fetch returned no items", attrs...)
	default:
		slog.Debug("Fetch succeeded", append(attrs, slog.Int("items", event.Items))...)
	}
}

// SSE publishes transitions on the status stream so a browser UI can
// surface toasts without polling.
type SSE struct{}

func (SSE) Notify(event Event) {
	if events.Server == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	events.Server.Publish("status", &sse.Event{Data: payload})
}

// Pushover pages the operator, but only on terminal failure. Anything
// noisier would burn through message quota on a flaky upstream.
type Pushover struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
}

func NewPushover(token, recipient string) *Pushover {
	return &Pushover{
		app:       pushover.New(token),
		recipient: pushover.NewRecipient(recipient),
	}
}

func (p *Pushover) Notify(event Event) {
	if event.Status != StatusFailed {
		return
	}
	go func() {
		message := &pushover.Message{
			Message:  "All media sources are failing and the static fallback set is being served.",
			Title:    "Beatframe fetch failure",
			Priority: pushover.PriorityHigh,
		}
		if _, err := p.app.SendMessage(message, p.recipient); err != nil {
			slog.Error("Failed to send pushover alert", slog.String("stack", err.Error()))
		}
	}()
}
