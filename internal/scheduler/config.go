package scheduler

import (
	"errors"
	"strings"
	"time"

	appconfig "github.com/placehub/placehub/internal/config"
)

var ErrInvalidConfig = errors.New("scheduler misconfigured")

// Config tunes the sweep loop. An empty EnabledJobs list enables every job.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	EnabledJobs []string
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	return c
}

func ProvideConfig(cfg appconfig.Config) Config {
	jobs := []string(nil)
	if raw := strings.TrimSpace(cfg.SchedulerJobs); raw != "" {
		for _, job := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(job); trimmed != "" {
				jobs = append(jobs, trimmed)
			}
		}
	}
	return Config{
		RunInterval: time.Duration(cfg.SchedulerIntervalSecs) * time.Second,
		EnabledJobs: jobs,
	}.withDefaults()
}
