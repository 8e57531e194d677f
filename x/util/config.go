package util

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

// Config is Meower base configuration
type Config struct {
	Server     Server     `yaml:"server"`
	RateLimit  RateLimit  `yaml:"rateLimit"`
	Moderation Moderation `yaml:"moderation"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	Dsn           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redisAddr"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

// RateLimit configures the write throttle of the create endpoints
type RateLimit struct {
	Backend        string `yaml:"backend"` // memory, redis or token
	WindowSeconds  int    `yaml:"windowSeconds"`
	Max            int    `yaml:"max"`
	TrustedHops    int    `yaml:"trustedHops"` // negative trusts every forwarded hop
	CleanupSeconds int    `yaml:"cleanupSeconds"`
	RedisPrefix    string `yaml:"redisPrefix"`
}

type Moderation struct {
	Placeholder string   `yaml:"placeholder"`
	ExtraWords  []string `yaml:"extraWords"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Server: Server{
			Listen: ":5000",
			Dsn:    "postgres://postgres@localhost:5432/meower?sslmode=disable",
		},
		RateLimit: RateLimit{
			Backend:        "memory",
			WindowSeconds:  30,
			Max:            1,
			TrustedHops:    1,
			CleanupSeconds: 60,
			RedisPrefix:    "meower:ratelimit",
		},
		Moderation: Moderation{
			Placeholder: "*",
		},
	}
}

// Load loads meower config from given path on top of the current values.
// A missing file is not an error; the current values are kept.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	return yaml.NewDecoder(f).Decode(c)
}

// ApplyEnv overrides connection targets from the environment
func (c *Config) ApplyEnv() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Server.Dsn = dsn
	}
	if addr := os.Getenv("MEOWER_REDIS_ADDR"); addr != "" {
		c.Server.RedisAddr = addr
	}
	if addr := os.Getenv("MEOWER_MEMCACHED_ADDR"); addr != "" {
		c.Server.MemcachedAddr = addr
	}
}

func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

func (r RateLimit) CleanupEvery() time.Duration {
	return time.Duration(r.CleanupSeconds) * time.Second
}

// PlaceholderRune returns the first rune of the placeholder, or zero if unset
func (m Moderation) PlaceholderRune() rune {
	for _, r := range m.Placeholder {
		return r
	}
	return 0
}
