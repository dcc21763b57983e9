package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/valinor-ai/skillgate/internal/audit"
	"github.com/valinor-ai/skillgate/internal/skillauth"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Skill    SkillConfig    `koanf:"skill"`
	Certs    CertsConfig    `koanf:"certs"`
	Audit    AuditConfig    `koanf:"audit"`
	Auth     AuthConfig     `koanf:"auth"`
}

type ServerConfig struct {
	Host               string   `koanf:"host"`
	Port               int      `koanf:"port"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int    `koanf:"max_conns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SkillConfig is the verification policy for the skill webhook.
type SkillConfig struct {
	ApplicationID          string `koanf:"application_id"`
	FreshnessToleranceSecs int    `koanf:"freshness_tolerance_secs"`
	SANMatch               string `koanf:"san_match"`
	UpstreamURL            string `koanf:"upstream_url"`
	MaxBodyBytes           int64  `koanf:"max_body_bytes"`
}

// FreshnessTolerance returns the tolerance as a duration.
func (s SkillConfig) FreshnessTolerance() time.Duration {
	return time.Duration(s.FreshnessToleranceSecs) * time.Second
}

// CertsConfig selects the certificate cache backend and fetch limits.
type CertsConfig struct {
	Cache            string      `koanf:"cache"`
	CacheTTLSecs     int         `koanf:"cache_ttl_secs"`
	CacheMaxEntries  int         `koanf:"cache_max_entries"`
	FetchTimeoutSecs int         `koanf:"fetch_timeout_secs"`
	FetchMaxBytes    int64       `koanf:"fetch_max_bytes"`
	Redis            RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	TLS      bool   `koanf:"tls"`
}

type AuditConfig struct {
	BufferSize    int `koanf:"buffer_size"`
	BatchSize     int `koanf:"batch_size"`
	FlushInterval int `koanf:"flush_interval_ms"`
}

// AuthConfig configures operator tokens for the audit API.
type AuthConfig struct {
	SigningKey  string `koanf:"signingkey"`
	Issuer      string `koanf:"issuer"`
	ExpiryHours int    `koanf:"expiryhours"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                    8080,
		"server.host":                    "0.0.0.0",
		"database.max_conns":             10,
		"log.level":                      "info",
		"log.format":                     "json",
		"skill.freshness_tolerance_secs": 120,
		"skill.san_match":                "exact",
		"skill.max_body_bytes":           1 << 20,
		"certs.cache":                    "memory",
		"certs.cache_ttl_secs":           0,
		"certs.cache_max_entries":        64,
		"certs.fetch_timeout_secs":       5,
		"certs.fetch_max_bytes":          64 << 10,
		"certs.redis.addr":               "localhost:6379",
		"audit.buffer_size":              4096,
		"audit.batch_size":               100,
		"audit.flush_interval_ms":        500,
		"auth.issuer":                    "skillgate",
		"auth.expiryhours":               12,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// Environment variables override everything
	// SKILLGATE_SKILL_APPLICATION_ID -> skill.application_id
	_ = k.Load(env.Provider("SKILLGATE_", ".", envKey), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	cfg.Certs.Cache = strings.ToLower(strings.TrimSpace(cfg.Certs.Cache))
	cfg.Skill.SANMatch = strings.ToLower(strings.TrimSpace(cfg.Skill.SANMatch))

	return &cfg, nil
}

// envKey maps SKILLGATE_SECTION_FIELD_NAME to section.field_name: the first
// underscore separates the section, the rest belong to the field, and a
// double underscore descends one more level (SKILLGATE_CERTS_REDIS__ADDR).
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "SKILLGATE_"))
	s = strings.ReplaceAll(s, "__", ".")
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return s
	}
	return section + "." + rest
}

// Validate rejects configurations the gateway cannot safely run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Skill.ApplicationID) == "" {
		errs = append(errs, errors.New("skill.application_id is required"))
	}
	if c.Skill.FreshnessToleranceSecs <= 0 {
		errs = append(errs, errors.New("skill.freshness_tolerance_secs must be positive"))
	}
	if c.Skill.FreshnessTolerance() > skillauth.MaxFreshnessTolerance {
		errs = append(errs, fmt.Errorf("skill.freshness_tolerance_secs must not exceed %d",
			int(skillauth.MaxFreshnessTolerance/time.Second)))
	}
	if _, err := skillauth.ParseSANMatchMode(c.Skill.SANMatch); err != nil {
		errs = append(errs, fmt.Errorf("skill.san_match: %w", err))
	}
	if c.Audit.BatchSize <= 0 || c.Audit.BatchSize > audit.MaxBatchSize {
		errs = append(errs, fmt.Errorf("audit.batch_size must be between 1 and %d", audit.MaxBatchSize))
	}
	switch c.Certs.Cache {
	case "memory", "redis":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("certs.cache=postgres requires database.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("certs.cache: unknown backend %q", c.Certs.Cache))
	}
	return errors.Join(errs...)
}
