package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BackendBaseURL       string        `env:"BACKEND_BASE_URL,required=true"`
	BackendReadTimeout   time.Duration `env:"BACKEND_READ_TIMEOUT,default=6s"`
	BackendWriteTimeout  time.Duration `env:"BACKEND_WRITE_TIMEOUT,default=12s"`
	BreakerThreshold     int           `env:"BREAKER_THRESHOLD,default=3"`
	BreakerCooldown      time.Duration `env:"BREAKER_COOLDOWN,default=15s"`
	DisconnectGrace      time.Duration `env:"DISCONNECT_GRACE,default=5s"`
	PresenceIdleLimit    time.Duration `env:"PRESENCE_IDLE_THRESHOLD,default=5s"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,default=1s"`
	AggregationWindow    time.Duration `env:"AGGREGATION_WINDOW,default=5s"`
	TypingMinInterval    time.Duration `env:"TYPING_MIN_INTERVAL,default=300ms"`
	TypingMaxTTL         time.Duration `env:"TYPING_MAX_TTL,default=15s"`
	HistoryCount         int           `env:"HISTORY_COUNT,default=50"`
	PageLimit            int           `env:"PAGE_LIMIT,default=200"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MetricWindowSize     int           `env:"METRIC_WINDOW_SIZE,default=500"`
}
