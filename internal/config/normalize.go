package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeScheduler()
	c.normalizeRetry()
	c.normalizeMonitor()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	c.Store.PostgresDSN = strings.TrimSpace(c.Store.PostgresDSN)
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.PassInterval == 0 {
		c.Scheduler.PassInterval = defaultPassInterval
	}
	if c.Scheduler.RequeueInterval == 0 {
		c.Scheduler.RequeueInterval = defaultRequeueInterval
	}
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = defaultWorkers
	}
	if c.Scheduler.UrgentPriority == 0 {
		c.Scheduler.UrgentPriority = defaultUrgentPriority
	}
	if c.Scheduler.DefaultMaxBatchSize == 0 {
		c.Scheduler.DefaultMaxBatchSize = defaultMaxBatchSize
	}
	c.Scheduler.SubmittedBy = strings.TrimSpace(c.Scheduler.SubmittedBy)
	if c.Scheduler.SubmittedBy == "" {
		host, err := os.Hostname()
		if err != nil || strings.TrimSpace(host) == "" {
			host = "localhost"
		}
		c.Scheduler.SubmittedBy = "docket@" + host
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.BaseDelayMinutes == 0 {
		c.Retry.BaseDelayMinutes = defaultRetryBaseDelay
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
}

func (c *Config) normalizeMonitor() {
	c.Monitor.Bind = strings.TrimSpace(c.Monitor.Bind)
	if c.Monitor.Bind == "" {
		c.Monitor.Bind = defaultMonitorBind
	}
	c.Monitor.Token = strings.TrimSpace(c.Monitor.Token)
	if c.Monitor.PushInterval == 0 {
		c.Monitor.PushInterval = defaultMonitorPushInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
