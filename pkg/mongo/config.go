package mongo

import "time"

// Config holds MongoDB connection settings populated from the environment.
type Config struct {
	ConnectionURL  string        `env:"MONGODB_URL,required"`
	DatabaseName   string        `env:"MONGODB_DATABASE,required"`
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize    uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize    uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"0"`
	RetryAttempts  int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`

	// Monitor settings drive the supervised health loop started by NewMonitor.
	MonitorInterval   time.Duration `env:"MONGODB_MONITOR_INTERVAL" envDefault:"15s"`
	MonitorMaxBackoff time.Duration `env:"MONGODB_MONITOR_MAX_BACKOFF" envDefault:"2m"`
}
