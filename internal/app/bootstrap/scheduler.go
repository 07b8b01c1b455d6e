package bootstrap

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	appconfig "github.com/wolfman30/dental-assistant-bot/internal/config"
	"github.com/wolfman30/dental-assistant-bot/internal/scheduler"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// BuildScheduler returns a client for SCHEDULER_ENDPOINT when set. Without
// one it returns an in-process calendar along with its HTTP handler so the
// wire contract can still be exercised; the handler is nil for the remote case.
func BuildScheduler(cfg *appconfig.Config, logger *logging.Logger) (scheduler.Scheduler, http.Handler, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	loc := time.UTC
	if tz := strings.TrimSpace(cfg.OfficeTimezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: office timezone %q: %w", tz, err)
		}
		loc = l
	}

	if endpoint := strings.TrimSpace(cfg.SchedulerEndpoint); endpoint != "" {
		logger.Info("remote scheduler enabled", "endpoint", endpoint)
		return scheduler.NewClient(endpoint, logger,
			scheduler.WithTimeout(cfg.SchedulerTimeout),
			scheduler.WithLocation(loc),
		), nil, nil
	}

	cal := scheduler.NewCalendar(scheduler.CalendarConfig{
		Location:  loc,
		OpenHour:  cfg.OfficeOpenHour,
		CloseHour: cfg.OfficeCloseHour,
		Slot:      time.Duration(cfg.SlotMinutes) * time.Minute,
	}, time.Now)
	logger.Warn("no scheduler endpoint configured; using in-memory calendar", "timezone", loc.String())
	return cal, cal.Handler(), nil
}
