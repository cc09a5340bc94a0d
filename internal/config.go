package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Auth     AuthConfig        `yaml:"auth"`
	Data     DataConfig        `yaml:"data"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Pyramid  PyramidConfig     `yaml:"pyramid"`
	Tracking TrackingConfig    `yaml:"tracking"`
	Viewer   ViewerConfig      `yaml:"viewer"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Pyramid.Validate(); err != nil {
		return err
	}
	return c.Tracking.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// DataConfig holds the on-disk layout: where tile pyramids live, where
// annotation snapshots are written, the external inventory mapping file,
// and the consolidated ink status file.
type DataConfig struct {
	TilesDir       string `yaml:"tiles_dir"`
	AnnotationsDir string `yaml:"annotations_dir"`
	MappingFile    string `yaml:"mapping_file"`
	StatusFile     string `yaml:"status_file"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TilesDir, validation.Required),
		validation.Field(&c.AnnotationsDir, validation.Required),
		validation.Field(&c.StatusFile, validation.Required),
	)
}

// SQLiteConfig holds the inventory database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PyramidConfig holds tile pyramid build parameters.
// Workers = 0 means one worker per CPU.
type PyramidConfig struct {
	TileSize int `yaml:"tile_size"`
	Overlap  int `yaml:"overlap"`
	Workers  int `yaml:"workers"`
}

// Validate validates the pyramid configuration.
func (c *PyramidConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TileSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Overlap, validation.Min(0)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// TrackingConfig holds live-tracking autosave parameters.
type TrackingConfig struct {
	MaxLiveFiles           int     `yaml:"max_live_files"`
	IntervalSeconds        float64 `yaml:"interval_seconds"`
	NavigationGraceSeconds float64 `yaml:"navigation_grace_seconds"`
}

// Interval returns the periodic autosave check interval.
func (c *TrackingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

// NavigationGrace returns how long after a navigation the autosave
// check stays suppressed.
func (c *TrackingConfig) NavigationGrace() time.Duration {
	return time.Duration(c.NavigationGraceSeconds * float64(time.Second))
}

// Validate validates the tracking configuration.
func (c *TrackingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxLiveFiles, validation.Required, validation.Min(1)),
		validation.Field(&c.IntervalSeconds, validation.Required, validation.Min(0.1)),
		validation.Field(&c.NavigationGraceSeconds, validation.Min(0.0)),
	)
}

// ViewerConfig holds viewer hints served alongside pyramid metadata.
// StartLevel = 0 means "use the level recommended by the builder's
// metadata"; a non-zero value overrides it for every image.
type ViewerConfig struct {
	StartLevel int `yaml:"start_level"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Data: DataConfig{
			TilesDir:       "./data/dzi",
			AnnotationsDir: "./data/anno",
			MappingFile:    "./data/tiles_directory_list.json",
			StatusFile:     "./data/ink_status/ink_status.json",
		},
		SQLite: SQLiteConfig{
			Path: "./inkscan.db",
		},
		Pyramid: PyramidConfig{
			TileSize: 256,
			Overlap:  1,
			Workers:  0,
		},
		Tracking: TrackingConfig{
			MaxLiveFiles:           1000,
			IntervalSeconds:        1,
			NavigationGraceSeconds: 2,
		},
		Viewer: ViewerConfig{
			StartLevel: 0,
		},
	}
}
