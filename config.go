package cmsengine

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/gommon/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/eringen/cmsengine/store"
)

//go:embed sample_config.toml
var sampleConfig string

// DefaultConfigFile is read by LoadConfig when no path is given and it exists.
const DefaultConfigFile = "cmsengine.toml"

// SampleConfig returns a commented configuration file with every key.
func SampleConfig() string { return sampleConfig }

// ByteSize is a size in bytes written as a human string ("10MB") in config.
type ByteSize int64

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(humanize.IBytes(uint64(b))), nil
}

func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

// Duration is a time.Duration written as "30s" in config.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Driver        string `toml:"driver"`         // "sqlite" (default) or "mongo"
	SQLitePath    string `toml:"sqlite_path"`    // default "data/cms.db"
	MongoURI      string `toml:"mongo_uri"`      // required for mongo
	MongoDatabase string `toml:"mongo_database"` // default "cms"
}

// Config holds all configuration for a cmsengine server.
type Config struct {
	Addr           string `toml:"addr"`             // Listen address (default ":3000")
	APIPrefix      string `toml:"api_prefix"`       // default "/api/v1"
	SiteName       string `toml:"site_name"`        // Shown on gallery pages and feeds
	GalleryBaseURL string `toml:"gallery_base_url"` // Public URL QR codes point at

	UploadDir     string   `toml:"upload_dir"`      // default "uploads"
	MaxUploadSize ByteSize `toml:"max_upload_size"` // Per file (default 10MiB)
	MaxBodySize   ByteSize `toml:"max_body_size"`   // Per request (default 1GiB)

	Store StoreConfig `toml:"store"`

	ListCacheTTL    Duration `toml:"list_cache_ttl"`   // 0 disables
	WriteLimit      int      `toml:"write_limit"`      // Writes per minute per IP, 0 disables
	CORSOrigins     []string `toml:"cors_origins"`     // default ["*"]
	LogLevel        string   `toml:"log_level"`        // debug, info, warn, error
	ShutdownTimeout Duration `toml:"shutdown_timeout"` // default 10s
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Addr:           ":3000",
		APIPrefix:      "/api/v1",
		SiteName:       "Gallery",
		GalleryBaseURL: "http://localhost:3000",
		UploadDir:      "uploads",
		MaxUploadSize:  10 << 20,
		MaxBodySize:    1 << 30,
		Store: StoreConfig{
			Driver:        "sqlite",
			SQLitePath:    "data/cms.db",
			MongoDatabase: "cms",
		},
		ListCacheTTL:    Duration{30 * time.Second},
		WriteLimit:      120,
		CORSOrigins:     []string{"*"},
		LogLevel:        "info",
		ShutdownTimeout: Duration{10 * time.Second},
	}
}

// setDefaults fills unset required values so a partially built Config works.
func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.APIPrefix == "" {
		c.APIPrefix = d.APIPrefix
	}
	if c.SiteName == "" {
		c.SiteName = d.SiteName
	}
	if c.GalleryBaseURL == "" {
		c.GalleryBaseURL = d.GalleryBaseURL
	}
	if c.UploadDir == "" {
		c.UploadDir = d.UploadDir
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = d.MaxUploadSize
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	if c.Store.Driver == "" {
		c.Store.Driver = d.Store.Driver
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = d.Store.SQLitePath
	}
	if c.Store.MongoDatabase == "" {
		c.Store.MongoDatabase = d.Store.MongoDatabase
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.ShutdownTimeout.Duration == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	c.APIPrefix = "/" + strings.Trim(c.APIPrefix, "/")
	c.GalleryBaseURL = strings.TrimRight(c.GalleryBaseURL, "/")
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// LoadConfig reads the TOML file at path over the defaults, then applies
// CMS_* environment overrides. An empty path reads DefaultConfigFile if it
// exists.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"CMS_ADDR":             &c.Addr,
		"CMS_API_PREFIX":       &c.APIPrefix,
		"CMS_SITE_NAME":        &c.SiteName,
		"CMS_GALLERY_BASE_URL": &c.GalleryBaseURL,
		"CMS_UPLOAD_DIR":       &c.UploadDir,
		"CMS_STORE_DRIVER":     &c.Store.Driver,
		"CMS_SQLITE_PATH":      &c.Store.SQLitePath,
		"CMS_MONGO_URI":        &c.Store.MongoURI,
		"CMS_MONGO_DATABASE":   &c.Store.MongoDatabase,
		"CMS_LOG_LEVEL":        &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	texts := map[string]interface{ UnmarshalText([]byte) error }{
		"CMS_MAX_UPLOAD_SIZE":  &c.MaxUploadSize,
		"CMS_MAX_BODY_SIZE":    &c.MaxBodySize,
		"CMS_LIST_CACHE_TTL":   &c.ListCacheTTL,
		"CMS_SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	}
	for key, dst := range texts {
		if v, ok := os.LookupEnv(key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	if v, ok := os.LookupEnv("CMS_WRITE_LIMIT"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CMS_WRITE_LIMIT: %w", err)
		}
		c.WriteLimit = n
	}
	if v, ok := os.LookupEnv("CMS_CORS_ORIGINS"); ok {
		c.CORSOrigins = FilterEmpty(strings.Split(v, ","))
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path must be set")
		}
	case "mongo":
		if c.Store.MongoURI == "" {
			return errors.New("store.mongo_uri is required when store.driver is mongo. Set CMS_MONGO_URI or edit the config file (create with 'cmsengine config init')")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or mongo, got %q", c.Store.Driver)
	}
	u, err := url.Parse(c.GalleryBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("gallery_base_url must be an absolute http(s) URL, got %q", c.GalleryBaseURL)
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("max_upload_size must be positive")
	}
	if c.MaxBodySize < c.MaxUploadSize {
		return errors.New("max_body_size must be at least max_upload_size")
	}
	if c.WriteLimit < 0 {
		return errors.New("write_limit must not be negative")
	}
	if c.ListCacheTTL.Duration < 0 {
		return errors.New("list_cache_ttl must not be negative")
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}

var logLevels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
}

func (c *Config) logLevel() log.Lvl {
	if lvl, ok := logLevels[c.LogLevel]; ok {
		return lvl
	}
	return log.INFO
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithDB makes the App use an already opened store instead of opening the
// one named in the config. The App still closes it on Close.
func WithDB(db store.DB) Option {
	return func(a *App) {
		a.DB = db
	}
}

// WithQRSize sets the edge length of generated QR images in pixels.
func WithQRSize(px int) Option {
	return func(a *App) {
		a.qr.Size = px
	}
}
