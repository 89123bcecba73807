package gateway

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	KucoinBaseURL string        `envconfig:"KUCOIN_BASE_URL" default:"https://api.kucoin.com"`
	HTTPTimeout   time.Duration `envconfig:"EXCHANGE_HTTP_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
