package main

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"beatframe/redgifs"
)

// SetupInBackground schedules the token warmer so interactive fetches
// rarely pay auth latency. More jobs hang off this scheduler as they
// appear.
func SetupInBackground(tokens *redgifs.TokenProvider) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	_, err = s.NewJob(
		gocron.DurationJob(time.Minute*10),
		gocron.NewTask(func() {
			tokens.EnsureFresh(context.Background())
		}),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}
