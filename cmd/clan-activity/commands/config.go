package commands

import (
	"fmt"
	"time"

	"clanactivity/internal/activity"
	"clanactivity/internal/components/telemetry"
	"clanactivity/internal/scrapers/bungie"
	"clanactivity/lib/configutil"
)

type Config struct {
	BaseUrl string `json:"base_url"`
	// the clan to resolve when no group id is given on the command line
	GroupId string `json:"group_id"`

	// the maximum amount of members resolved at once
	Concurrency int `json:"concurrency"`
	// either "fail-fast" or "collect-all"
	Policy string `json:"policy"`

	// 0 means requests are not rate limited beyond the concurrency
	RequestsPerSecond float64 `json:"requests_per_second"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	UserAgent         string  `json:"user_agent"`

	// the timezone last activity is displayed in, empty means local time
	Timezone string `json:"timezone"`
	// if specified, batch metrics are written here in the prometheus text format
	MetricsFile string `json:"metrics_file"`
	// if specified, every http exchange is written into this directory
	DumpHttp string `json:"dump_http"`
}

var defaultConfig = Config{
	BaseUrl:        bungie.DefaultBaseUrl,
	Concurrency:    10,
	Policy:         activity.CollectAll.String(),
	TimeoutSeconds: 30,
}

func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfigOr(path, defaultConfig)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	_, err := activity.ParsePolicy(c.Policy)
	return err
}

func (c Config) ClientOptions() (bungie.ClientOptions, error) {
	opts := bungie.ClientOptions{
		BaseUrl:           c.BaseUrl,
		RequestsPerSecond: c.RequestsPerSecond,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		UserAgent:         c.UserAgent,
	}
	if c.DumpHttp != "" {
		dump, err := telemetry.NewFilesystemOutput(c.DumpHttp)
		if err != nil {
			return bungie.ClientOptions{}, err
		}
		opts.Dump = dump
	}
	return opts, nil
}
