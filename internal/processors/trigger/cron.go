package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
)

// CronProcessor emits a trigger event on every tick of a cron schedule.
// Ticks that arrive while the previous event is unconsumed are dropped.
type CronProcessor struct {
	name     string
	schedule string
	timezone string
	cron     *cron.Cron
	events   chan core.TriggerEvent
	stopOnce sync.Once
}

// Compile-time check that CronProcessor implements core.TriggerProcessor.
var _ core.TriggerProcessor = (*CronProcessor)(nil)

func NewCronProcessor(cfg *config.CronTrigger) (*CronProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cron config is required")
	}
	p := &CronProcessor{
		name:     "cron",
		schedule: cfg.Cron,
		timezone: cfg.Timezone,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *CronProcessor) Name() string {
	return c.name
}

func (c *CronProcessor) Validate() error {
	if c.schedule == "" {
		return fmt.Errorf("cron schedule is required")
	}
	if _, err := cron.ParseStandard(c.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", c.schedule, err)
	}
	if c.timezone != "" {
		if _, err := time.LoadLocation(c.timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	return nil
}

func (c *CronProcessor) Start(ctx context.Context, watchID string) (<-chan core.TriggerEvent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	location := time.UTC
	if c.timezone != "" {
		tz, err := time.LoadLocation(c.timezone)
		if err != nil {
			return nil, err
		}
		location = tz
	}

	c.events = make(chan core.TriggerEvent, 1)
	c.cron = cron.New(cron.WithLocation(location))
	_, err := c.cron.AddFunc(c.schedule, func() {
		c.fire(watchID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	c.cron.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return c.events, nil
}

func (c *CronProcessor) fire(watchID string, at time.Time) {
	select {
	case c.events <- core.TriggerEvent{WatchID: watchID, Timestamp: at}:
	default:
	}
}

func (c *CronProcessor) Stop() error {
	c.stopOnce.Do(func() {
		if c.cron != nil {
			ctx := c.cron.Stop()
			<-ctx.Done()
		}
		if c.events != nil {
			close(c.events)
		}
	})
	return nil
}
