package config

import (
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	KeyAPIKey            = "BLACKCAT_API_KEY"
	KeyAPIBase           = "BLACKCAT_API_BASE"
	KeyPushURLs          = "PUSH_URLS"
	KeyPort              = "PORT"
	KeyGatewayTimeoutMs  = "GATEWAY_TIMEOUT_MS"
	KeyPushTimeoutMs     = "PUSH_TIMEOUT_MS"
	KeyPushParallelism   = "PUSH_PARALLELISM"
	KeyStaticRoot        = "STATIC_ROOT"
	KeyLogsURL           = "LOGS_URL"
	KeyMetricsURL        = "METRICS_URL"
	KeyMetricsIntervalMs = "METRICS_INTERVAL_MS"
	KeyMetricsLabels     = "METRICS_LABELS"
)

const (
	DefaultAPIBase           = "https://api.blackcatpagamentos.online/api"
	DefaultPort              = "8080"
	DefaultGatewayTimeoutMs  = 30_000
	DefaultPushTimeoutMs     = 10_000
	DefaultPushParallelism   = 100
	DefaultMetricsIntervalMs = 10_000
)

type Gateway struct {
	BaseURL string
	Timeout time.Duration
}

type Push struct {
	URLs        []string
	Timeout     time.Duration
	Parallelism int
}

type Server struct {
	Port       string
	StaticRoot string
}

type Metrics struct {
	URL          string
	IntervalMs   int
	CommonLabels string
}

type Logs struct {
	URL string
}

type Config struct {
	Gateway Gateway
	Push    Push
	Server  Server
	Metrics Metrics
	Logs    Logs
}

// Provider resolves settings from the environment first and the config file second.
type Provider struct {
	v *viper.Viper
}

// NewProvider builds a provider over an already populated viper instance.
func NewProvider(v *viper.Viper) *Provider {
	v.AutomaticEnv()
	v.SetDefault(KeyAPIBase, DefaultAPIBase)
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyGatewayTimeoutMs, DefaultGatewayTimeoutMs)
	v.SetDefault(KeyPushTimeoutMs, DefaultPushTimeoutMs)
	v.SetDefault(KeyPushParallelism, DefaultPushParallelism)
	v.SetDefault(KeyStaticRoot, ".")
	v.SetDefault(KeyMetricsIntervalMs, DefaultMetricsIntervalMs)
	return &Provider{v: v}
}

// Load reads config.{json,yaml,...} from path. A missing file is not an error.
func Load(path string) (*Provider, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrapf(err, "reading config from %s", path)
		}
	}

	return NewProvider(v), nil
}

func MustLoad(path string) *Provider {
	p, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return p
}

// Lookup returns the value for key and whether it was set to a non-empty value.
func (p *Provider) Lookup(key string) (string, bool) {
	val := strings.TrimSpace(p.v.GetString(key))
	if val == "" {
		return "", false
	}
	return val, true
}

func (p *Provider) Get(key string) string {
	val, _ := p.Lookup(key)
	return val
}

func (p *Provider) GetInt(key string, fallback int) int {
	val, err := cast.ToIntE(p.v.Get(key))
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

// APIKey is the upstream credential, empty when not configured.
func (p *Provider) APIKey() string {
	return p.Get(KeyAPIKey)
}

// PushURLs accepts a comma separated string (environment or file) or an array (file).
func (p *Provider) PushURLs() []string {
	var raw []string
	switch val := p.v.Get(KeyPushURLs).(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(val, ",")
	default:
		raw = cast.ToStringSlice(val)
	}

	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Config snapshots the typed runtime settings.
func (p *Provider) Config() *Config {
	return &Config{
		Gateway: Gateway{
			BaseURL: strings.TrimRight(p.Get(KeyAPIBase), "/"),
			Timeout: time.Duration(p.GetInt(KeyGatewayTimeoutMs, DefaultGatewayTimeoutMs)) * time.Millisecond,
		},
		Push: Push{
			URLs:        p.PushURLs(),
			Timeout:     time.Duration(p.GetInt(KeyPushTimeoutMs, DefaultPushTimeoutMs)) * time.Millisecond,
			Parallelism: p.GetInt(KeyPushParallelism, DefaultPushParallelism),
		},
		Server: Server{
			Port:       p.Get(KeyPort),
			StaticRoot: p.Get(KeyStaticRoot),
		},
		Metrics: Metrics{
			URL:          p.Get(KeyMetricsURL),
			IntervalMs:   p.GetInt(KeyMetricsIntervalMs, DefaultMetricsIntervalMs),
			CommonLabels: p.Get(KeyMetricsLabels),
		},
		Logs: Logs{
			URL: p.Get(KeyLogsURL),
		},
	}
}
