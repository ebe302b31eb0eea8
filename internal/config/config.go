package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Points     PointsConfig     `mapstructure:"points"`
	Anonymizer AnonymizerConfig `mapstructure:"anonymizer"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AutoClose string `mapstructure:"auto_close"`
}

type AuthConfig struct {
	// Secret signs and verifies HS256 bearer tokens.
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	// DevIssuer exposes POST /api/v1/auth/token so the API can be exercised
	// without the platform's real auth layer. Never enable in prod.
	DevIssuer bool `mapstructure:"dev_issuer"`
}

type PointsConfig struct {
	// StartingGrant is credited the first time an account is touched.
	StartingGrant int64 `mapstructure:"starting_grant"`

	// MissionReward is the default flat payout for mission topics that do
	// not set their own.
	MissionReward int64 `mapstructure:"mission_reward"`
}

type AnonymizerConfig struct {
	// Secret keys the deterministic voter pseudonyms.
	Secret string `mapstructure:"secret"`
}

// Load reads YAML config from path with CD_-prefixed env overrides. With
// envOnly set the file is skipped entirely and only env + defaults apply.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.auto_close", "@every 1m")
	v.SetDefault("auth.secret", "coachdesk-dev-secret")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.dev_issuer", false)
	v.SetDefault("points.starting_grant", 1000)
	v.SetDefault("points.mission_reward", 10)
	v.SetDefault("anonymizer.secret", "coachdesk-dev-anon")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
