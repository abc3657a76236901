// Package config loads contentstats settings from an optional YAML file and
// the environment. Environment variables win over the file; the file wins
// over built-in defaults.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/contentstats/internal/database"
	"github.com/koustreak/contentstats/internal/errs"
	"github.com/koustreak/contentstats/internal/filestore"
	"github.com/koustreak/contentstats/internal/logger"
	"github.com/koustreak/contentstats/internal/report"
	"go.yaml.in/yaml/v3"
)

// Config is the complete run configuration.
type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Analysis report.Settings `yaml:"analysis"`
	Output   OutputConfig    `yaml:"output"`
	Log      LogConfig       `yaml:"log"`
	Publish  PublishConfig   `yaml:"publish"`
	Web      WebConfig       `yaml:"web"`
}

// DatabaseConfig locates the snapshot. Either DSN is given whole or it is
// built from the individual fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"` // database name, or file path for sqlite
	SSLMode  string `yaml:"sslmode"`
}

type OutputConfig struct {
	Dir  string `yaml:"dir"`
	Site string `yaml:"site"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PublishConfig controls uploading finished bundles to object storage.
type PublishConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Bucket    string        `yaml:"bucket"`
	Prefix    string        `yaml:"prefix"`
	Region    string        `yaml:"region"`
	UseSSL    bool          `yaml:"use_ssl"`
	LinkTTL   time.Duration `yaml:"link_ttl"`
}

type WebConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: string(database.DriverMySQL),
			Host:   "127.0.0.1",
		},
		Analysis: report.DefaultSettings(),
		Output:   OutputConfig{Dir: "."},
		Log:      LogConfig{Level: "info", Format: "console"},
		Publish:  PublishConfig{LinkTTL: 24 * time.Hour},
		Web:      WebConfig{Addr: ":8080"},
	}
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrapf(errs.ErrKindIO, err, "failed to read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrapf(errs.ErrKindInvalidInput, err, "failed to parse config %s", path)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := database.ParseDriver(c.Database.Driver); err != nil {
		return err
	}
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if c.Output.Dir == "" {
		return errs.New(errs.ErrKindInvalidInput, "output directory is required")
	}
	if err := c.Logger().Validate(); err != nil {
		return err
	}
	if c.Publish.Enabled {
		if err := c.Store().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the connection settings for the snapshot.
func (c *Config) DB() (*database.Config, error) {
	driver, err := database.ParseDriver(c.Database.Driver)
	if err != nil {
		return nil, err
	}
	dsn := c.Database.DSN
	if dsn == "" {
		dsn = buildDSN(driver, c.Database)
	}
	if dsn == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "no database DSN or name configured")
	}
	return database.DefaultConfig(driver, dsn), nil
}

// Logger returns the logger settings. Output is left to the caller.
func (c *Config) Logger() *logger.Config {
	return &logger.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// Store returns the object storage settings for publishing.
func (c *Config) Store() *filestore.Config {
	p := c.Publish
	cfg := filestore.DefaultConfig(p.Endpoint, p.AccessKey, p.SecretKey, p.Bucket)
	cfg.Prefix = p.Prefix
	cfg.Region = p.Region
	cfg.UseSSL = p.UseSSL
	cfg.LinkTTL = p.LinkTTL
	return cfg
}

// buildDSN assembles a driver-specific DSN from the individual fields.
func buildDSN(driver database.Driver, db DatabaseConfig) string {
	if db.Name == "" {
		return ""
	}
	switch driver {
	case database.DriverMySQL:
		port := db.Port
		if port == 0 {
			port = 3306
		}
		// format: user:pass@tcp(host:port)/dbname
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", db.User, db.Password, db.Host, port, db.Name)
	case database.DriverPostgres:
		sslMode := db.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		port := db.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			db.Host, port, db.User, pgQuote(db.Password), db.Name, sslMode,
		)
	default:
		return db.Name
	}
}

// pgQuote quotes a keyword/value connection string value when needed.
func pgQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides cfg from the environment.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"DB_DRIVER":          &cfg.Database.Driver,
		"DB_DSN":             &cfg.Database.DSN,
		"DB_HOST":            &cfg.Database.Host,
		"DB_USER":            &cfg.Database.User,
		"DB_PASSWORD":        &cfg.Database.Password,
		"DB_NAME":            &cfg.Database.Name,
		"DB_SSLMODE":         &cfg.Database.SSLMode,
		"OUTPUT_DIR":         &cfg.Output.Dir,
		"SITE_NAME":          &cfg.Output.Site,
		"LOG_LEVEL":          &cfg.Log.Level,
		"LOG_FORMAT":         &cfg.Log.Format,
		"PUBLISH_ENDPOINT":   &cfg.Publish.Endpoint,
		"PUBLISH_ACCESS_KEY": &cfg.Publish.AccessKey,
		"PUBLISH_SECRET_KEY": &cfg.Publish.SecretKey,
		"PUBLISH_BUCKET":     &cfg.Publish.Bucket,
		"PUBLISH_PREFIX":     &cfg.Publish.Prefix,
		"PUBLISH_REGION":     &cfg.Publish.Region,
		"WEB_ADDR":           &cfg.Web.Addr,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	ints := cfg.Analysis.Pointers()
	ints["DB_PORT"] = &cfg.Database.Port
	// Sorted so the first bad variable reported is stable.
	names := make([]string, 0, len(ints))
	for name := range ints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errs.Wrapf(errs.ErrKindInvalidInput, err, "%s must be an integer", name)
		}
		*ints[name] = n
	}

	bools := map[string]*bool{
		"PUBLISH_ENABLED": &cfg.Publish.Enabled,
		"PUBLISH_USE_SSL": &cfg.Publish.UseSSL,
	}
	for name, dst := range bools {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errs.Wrapf(errs.ErrKindInvalidInput, err, "%s must be a boolean", name)
		}
		*dst = b
	}

	if v, ok := lookup("PUBLISH_LINK_TTL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "PUBLISH_LINK_TTL must be a duration", err)
		}
		cfg.Publish.LinkTTL = d
	}
	return nil
}
