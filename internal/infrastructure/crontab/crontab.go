package crontab

import (
	"context"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"smartsite/edge-gateway/internal/domain/session"
)

// Crontab runs the periodic session cache janitor.
type Crontab struct {
	ctab    *crontab.Crontab
	gateway *session.Gateway
	logger  zerolog.Logger
}

func NewCrontab(gateway *session.Gateway, logger zerolog.Logger) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		gateway: gateway,
		logger:  logger,
	}
}

// Run schedules the janitor and blocks until the context is cancelled.
func (c *Crontab) Run(ctx context.Context) error {
	// execute once on server start
	c.sweep()

	if err := c.ctab.AddJob("* * * * *", c.sweep); err != nil {
		return err
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) sweep() {
	if removed := c.gateway.Maintain(); removed > 0 {
		c.logger.Info().Int("removed", removed).Msg("session cache janitor swept entries")
	}
}
