// Package config loads orchepy's runtime configuration from environment
// variables, following the reference codebase's viper-driven env-only
// loader (no config file — this service has a smaller, fixed surface).
package config

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration (spec.md §6).
type Config struct {
	DatabaseURL string
	Host        string
	Port        int
	Debug       bool

	WebhookOnCaseCreate bool
	WebhookOnCaseMove   bool

	WhitelistEnabled bool
	WhitelistIPs     []string
}

func bindEnvVars() {
	viper.AutomaticEnv()
	_ = viper.BindEnv("database_url", "DATABASE_URL")
	_ = viper.BindEnv("host", "HOST")
	_ = viper.BindEnv("port", "PORT")
	_ = viper.BindEnv("debug", "DEBUG")
	_ = viper.BindEnv("webhook_on_case_create", "WEBHOOK_ON_CASE_CREATE")
	_ = viper.BindEnv("webhook_on_case_move", "WEBHOOK_ON_CASE_MOVE")
	_ = viper.BindEnv("whitelist_enabled", "WHITELIST_ENABLED")
	_ = viper.BindEnv("whitelist_ips", "WHITELIST_IPS")
}

// Load resolves Config from the environment, applying the defaults named
// in spec.md §6 for anything unset.
func Load() (*Config, error) {
	bindEnvVars()

	viper.SetDefault("database_url", "postgres://localhost:5432/orchepy?sslmode=disable")
	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 3296)
	viper.SetDefault("debug", false)
	viper.SetDefault("webhook_on_case_create", true)
	viper.SetDefault("webhook_on_case_move", true)
	viper.SetDefault("whitelist_enabled", false)
	viper.SetDefault("whitelist_ips", "")

	cfg := &Config{
		DatabaseURL:         viper.GetString("database_url"),
		Host:                viper.GetString("host"),
		Port:                viper.GetInt("port"),
		Debug:               viper.GetBool("debug"),
		WebhookOnCaseCreate: viper.GetBool("webhook_on_case_create"),
		WebhookOnCaseMove:   viper.GetBool("webhook_on_case_move"),
		WhitelistEnabled:    viper.GetBool("whitelist_enabled"),
		WhitelistIPs:        parseIPList(viper.GetString("whitelist_ips")),
	}
	return cfg, nil
}

func parseIPList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Addr returns the host:port pair the HTTP server should bind to.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
