package dispatcher

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MaxAttempts bounds exchange submission attempts per dispatch,
	// counting the first try.
	MaxAttempts    int           `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"DISPATCH_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay  time.Duration `envconfig:"DISPATCH_RETRY_MAX_DELAY" default:"10s"`

	// LockLease must outlive the slowest plausible dispatch so a live
	// holder is never preempted; LockWait keeps webhook latency bounded.
	LockLease time.Duration `envconfig:"DISPATCH_LOCK_LEASE" default:"90s"`
	LockWait  time.Duration `envconfig:"DISPATCH_LOCK_WAIT" default:"2s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
