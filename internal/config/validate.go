package config

import (
	"errors"
	"fmt"
)

// Backend names accepted by store.backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validatePortal(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendSQLite:
		return nil
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn must be set when store.backend is postgres")
		}
		return nil
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSQLite, BackendPostgres, c.Store.Backend)
	}
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.PassInterval < 1 {
		return errors.New("scheduler.pass_interval must be at least 1 second")
	}
	if c.Scheduler.RequeueInterval < 1 {
		return errors.New("scheduler.requeue_interval must be at least 1 second")
	}
	if c.Scheduler.Workers < 1 {
		return errors.New("scheduler.workers must be at least 1")
	}
	if c.Scheduler.UrgentPriority < 1 {
		return errors.New("scheduler.urgent_priority must be at least 1")
	}
	if c.Scheduler.DefaultMaxBatchSize < 1 {
		return errors.New("scheduler.default_max_batch_size must be at least 1")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.BaseDelayMinutes < 1 {
		return errors.New("retry.base_delay_minutes must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validatePortal() error {
	for jurisdiction, limit := range c.Portal.Limits {
		if jurisdiction == "" {
			return errors.New("portal.limits contains an empty jurisdiction code")
		}
		if limit < 1 {
			return fmt.Errorf("portal.limits[%q] must be at least 1, got %d", jurisdiction, limit)
		}
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.Bind == "" {
		return errors.New("monitor.bind must be set")
	}
	if c.Monitor.PushInterval < 1 {
		return errors.New("monitor.push_interval must be at least 1 second")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
