package config

const (
	defaultStateDir              = "~/.local/share/milkcrate"
	defaultDownloadDir           = "~/Music/bandcamp"
	defaultLogDir                = "~/.local/share/milkcrate/logs"
	defaultBaseURL               = "https://bandcamp.com"
	defaultCookiesPath           = "~/.config/milkcrate/cookies.json"
	defaultCookiesFormat         = "auto"
	defaultEncoding              = "flac"
	defaultRateRequests          = 10
	defaultRateWindowSeconds     = 10
	defaultRetryMaxAttempts      = 5
	defaultRequestTimeoutSeconds = 60
	defaultSyncConcurrency       = 8
	defaultPageLimit             = 1000
	defaultStatPollInterval      = 5
	defaultStatPollLimit         = 120
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
		},
		Bandcamp: Bandcamp{
			BaseURL:       defaultBaseURL,
			CookiesPath:   defaultCookiesPath,
			CookiesFormat: defaultCookiesFormat,
			Encoding:      defaultEncoding,
		},
		Transport: Transport{
			RateRequests:          defaultRateRequests,
			RateWindowSeconds:     defaultRateWindowSeconds,
			RetryMaxAttempts:      defaultRetryMaxAttempts,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Sync: Sync{
			Concurrency:             defaultSyncConcurrency,
			PageLimit:               defaultPageLimit,
			StatPollIntervalSeconds: defaultStatPollInterval,
			StatPollLimit:           defaultStatPollLimit,
			Download:                true,
			Journal:                 true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
