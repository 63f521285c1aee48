package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies the default
// tag for anything unset and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := populate(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// populate walks the config sections and fills every field carrying an env tag.
func populate(v reflect.Value) error {
	t := v.Type()
	for i := range t.NumField() {
		field, fv := t.Field(i), v.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := populate(fv); err != nil {
				return err
			}
			continue
		}

		name, raw, ok := lookup(field.Tag)
		if !ok {
			continue
		}
		if err := decode(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// lookup resolves a field's raw value: env, then envAlt, then default.
// ok is false when the field has no env tag or no value at all.
func lookup(tag reflect.StructTag) (name, raw string, ok bool) {
	name = tag.Get("env")
	if name == "" {
		return "", "", false
	}
	for _, key := range []string{name, tag.Get("envAlt")} {
		if key == "" {
			continue
		}
		if raw = os.Getenv(key); raw != "" {
			return name, raw, true
		}
	}
	raw = tag.Get("default")
	return name, raw, raw != ""
}

// decode parses raw into fv according to the field's type.
func decode(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Slice:
		var list []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
		fv.Set(reflect.ValueOf(list))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Type())
	}
	return nil
}

// problems collects validation failures.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

// Validate reports every invalid setting in a single error.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	p.check(c.Server.MaxSessions > 0, "SERVER_MAX_SESSIONS must be positive")

	p.check(c.Ingest.MaxFileSize > 0, "INGEST_MAX_FILE_SIZE must be positive")
	p.check(len(c.Ingest.AllowedExtensions) > 0, "INGEST_ALLOWED_EXTENSIONS must list at least one extension")
	for _, ext := range c.Ingest.AllowedExtensions {
		p.check(strings.HasPrefix(ext, "."), "INGEST_ALLOWED_EXTENSIONS entry %q must start with a dot", ext)
	}
	if utf8.RuneCountInString(c.Ingest.Delimiter) != 1 {
		p.check(false, "INGEST_DELIMITER (%q) must be a single character", c.Ingest.Delimiter)
	} else {
		d := c.Ingest.DelimiterRune()
		p.check(d != '"' && d != '\r' && d != '\n', "INGEST_DELIMITER (%q) cannot be a quote or line break", c.Ingest.Delimiter)
	}

	p.check(c.Export.MaxConcurrent > 0, "EXPORT_MAX_CONCURRENT must be positive")
	p.check(c.Export.MaxWaitTime > 0, "EXPORT_MAX_WAIT_TIME must be positive")
	p.check(c.Export.Timeout > 0, "EXPORT_TIMEOUT must be positive")

	// Pool settings only matter when the postgres sink is enabled.
	if c.Database.Enabled() {
		p.check(c.Database.MaxConns >= c.Database.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns)
		p.check(c.Database.MaxConns > 0, "DB_MAX_CONNS must be positive")
		p.check(c.Database.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	}

	p.check(c.SQLite.BusyTimeout >= 0, "SQLITE_BUSY_TIMEOUT must be non-negative")

	if c.Rate.Enabled {
		p.check(c.Rate.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
		p.check(c.Rate.ExportLimit > 0, "RATE_LIMIT_EXPORT must be positive when rate limiting is enabled")
	}

	p.check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.check(false, "LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.check(false, "LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

// String renders the config for logging with the database URL and API keys masked.
func (c *Config) String() string {
	dbURL := "[UNSET]"
	if c.Database.Enabled() {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Config{Server: {Host: %q, Port: %d, MaxSessions: %d}, ", c.Server.Host, c.Server.Port, c.Server.MaxSessions)
	fmt.Fprintf(&b, "Ingest: {MaxFileSize: %d, AllowedExtensions: %v, Delimiter: %q}, ",
		c.Ingest.MaxFileSize, c.Ingest.AllowedExtensions, c.Ingest.Delimiter)
	fmt.Fprintf(&b, "Export: {MaxConcurrent: %d, Timeout: %s, Dir: %q}, ", c.Export.MaxConcurrent, c.Export.Timeout, c.Export.Dir)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ", dbURL, c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "SQLite: {Path: %q}, ", c.SQLite.Path)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}}", c.Logging.Level, c.Logging.Format)
	return b.String()
}
