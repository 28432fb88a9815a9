package config

const (
	defaultDataDir             = "~/.local/share/docket"
	defaultLogDir              = "~/.local/share/docket/logs"
	defaultStoreBackend        = "sqlite"
	defaultPassInterval        = 60
	defaultRequeueInterval     = 600
	defaultWorkers             = 1
	defaultUrgentPriority      = 8
	defaultMaxBatchSize        = 100
	defaultRetryBaseDelay      = 30
	defaultRetryMaxAttempts    = 5
	defaultMonitorBind         = "127.0.0.1:7911"
	defaultMonitorPushInterval = 5
	defaultLogFormat           = "json"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Store: Store{
			Backend: defaultStoreBackend,
		},
		Scheduler: Scheduler{
			PassInterval:        defaultPassInterval,
			RequeueInterval:     defaultRequeueInterval,
			Workers:             defaultWorkers,
			UrgentPriority:      defaultUrgentPriority,
			DefaultMaxBatchSize: defaultMaxBatchSize,
		},
		Retry: Retry{
			BaseDelayMinutes: defaultRetryBaseDelay,
			MaxAttempts:      defaultRetryMaxAttempts,
		},
		Monitor: Monitor{
			Bind:         defaultMonitorBind,
			PushInterval: defaultMonitorPushInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
