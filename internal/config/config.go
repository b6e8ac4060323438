// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
// (e.g. BOXEDIT_EDITOR_MIN_WIDTH).
const EnvPrefix = "BOXEDIT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Editor() EditorConfig
	Observer() ObserverConfig
	Overlay() OverlayConfig
	Browser() BrowserConfig
	Events() EventsConfig

	// Logger Setters
	SetLoggerLevel(level string)

	// Editor Setters
	SetEditorMinSize(width, height float64)
	SetEditorAuditStyleWrites(bool)

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserViewport(width, height int)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger   LoggerConfig
	editor   EditorConfig
	observer ObserverConfig
	overlay  OverlayConfig
	browser  BrowserConfig
	events   EventsConfig
}

// fileConfig mirrors Config with exported fields so viper can decode into it.
type fileConfig struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Editor   EditorConfig   `mapstructure:"editor" yaml:"editor"`
	Observer ObserverConfig `mapstructure:"observer" yaml:"observer"`
	Overlay  OverlayConfig  `mapstructure:"overlay" yaml:"overlay"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Events   EventsConfig   `mapstructure:"events" yaml:"events"`
}

func (c *Config) Logger() LoggerConfig     { return c.logger }
func (c *Config) Editor() EditorConfig     { return c.editor }
func (c *Config) Observer() ObserverConfig { return c.observer }
func (c *Config) Overlay() OverlayConfig   { return c.overlay }
func (c *Config) Browser() BrowserConfig   { return c.browser }
func (c *Config) Events() EventsConfig     { return c.events }

func (c *Config) SetLoggerLevel(level string) { c.logger.Level = level }

func (c *Config) SetEditorMinSize(width, height float64) {
	c.editor.MinWidth = width
	c.editor.MinHeight = height
}
func (c *Config) SetEditorAuditStyleWrites(b bool) { c.editor.AuditStyleWrites = b }

func (c *Config) SetBrowserHeadless(b bool) { c.browser.Headless = b }
func (c *Config) SetBrowserViewport(width, height int) {
	c.browser.Viewport = ViewportConfig{Width: width, Height: height}
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// EditorConfig configures EditableBox instances and the interaction layer.
type EditorConfig struct {
	MinWidth  float64 `mapstructure:"min_width" yaml:"min_width"`
	MinHeight float64 `mapstructure:"min_height" yaml:"min_height"`
	// DragThreshold is the distance in px a pressed pointer must travel
	// before the press is treated as a drag.
	DragThreshold    float64 `mapstructure:"drag_threshold" yaml:"drag_threshold"`
	PercentPrecision int     `mapstructure:"percent_precision" yaml:"percent_precision"`
	AuditStyleWrites bool    `mapstructure:"audit_style_writes" yaml:"audit_style_writes"`
}

// ObserverConfig configures the RectObserver.
type ObserverConfig struct {
	DuplicateThreshold float64 `mapstructure:"duplicate_threshold" yaml:"duplicate_threshold"`
	// DevicePixelRatio snaps observed rects to device pixels when > 0.
	DevicePixelRatio float64 `mapstructure:"device_pixel_ratio" yaml:"device_pixel_ratio"`
}

// OverlayConfig configures the handle overlay.
type OverlayConfig struct {
	HandleSize  float64 `mapstructure:"handle_size" yaml:"handle_size"`
	BorderColor string  `mapstructure:"border_color" yaml:"border_color"`
	ZIndex      int     `mapstructure:"z_index" yaml:"z_index"`
}

// BrowserConfig holds settings for the document backends.
type BrowserConfig struct {
	Headless bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath string         `mapstructure:"exec_path" yaml:"exec_path"`
	Timeout  time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	Viewport ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
}

// ViewportConfig is the viewport size in CSS pixels.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// EventsConfig configures the host event bus.
type EventsConfig struct {
	BufferSize      int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	PublishTimeout  time.Duration `mapstructure:"publish_timeout" yaml:"publish_timeout"`
	ReadoutInterval time.Duration `mapstructure:"readout_interval" yaml:"readout_interval"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := unmarshal(v)
	if err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "boxedit")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Editor --
	v.SetDefault("editor.min_width", 20.0)
	v.SetDefault("editor.min_height", 20.0)
	v.SetDefault("editor.drag_threshold", 3.0)
	v.SetDefault("editor.percent_precision", 1)
	v.SetDefault("editor.audit_style_writes", false)

	// -- Observer --
	v.SetDefault("observer.duplicate_threshold", 0.05)
	v.SetDefault("observer.device_pixel_ratio", 0.0)

	// -- Overlay --
	v.SetDefault("overlay.handle_size", 8.0)
	v.SetDefault("overlay.border_color", "#007cff")
	v.SetDefault("overlay.z_index", 10000)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.timeout", "10s")
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)

	// -- Events --
	v.SetDefault("events.buffer_size", 64)
	v.SetDefault("events.publish_timeout", "50ms")
	v.SetDefault("events.readout_interval", "100ms")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	return &Config{
		logger:   fc.Logger,
		editor:   fc.Editor,
		observer: fc.Observer,
		overlay:  fc.Overlay,
		browser:  fc.Browser,
		events:   fc.Events,
	}, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.editor.Validate(); err != nil {
		return fmt.Errorf("editor configuration invalid: %w", err)
	}
	if err := c.observer.Validate(); err != nil {
		return fmt.Errorf("observer configuration invalid: %w", err)
	}
	if c.overlay.HandleSize <= 0 {
		return fmt.Errorf("overlay.handle_size must be positive")
	}
	if c.browser.Viewport.Width <= 0 || c.browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport must have a positive width and height")
	}
	if c.events.BufferSize < 0 {
		return fmt.Errorf("events.buffer_size must not be negative")
	}
	return nil
}

// Validate checks the EditorConfig settings.
func (e *EditorConfig) Validate() error {
	if e.MinWidth <= 0 || e.MinHeight <= 0 {
		return fmt.Errorf("min_width and min_height must be positive")
	}
	if e.DragThreshold < 0 {
		return fmt.Errorf("drag_threshold must not be negative")
	}
	if e.PercentPrecision < 0 || e.PercentPrecision > 4 {
		return fmt.Errorf("percent_precision must be between 0 and 4")
	}
	return nil
}

// Validate checks the ObserverConfig settings.
func (o *ObserverConfig) Validate() error {
	if o.DuplicateThreshold < 0 {
		return fmt.Errorf("duplicate_threshold must not be negative")
	}
	if o.DevicePixelRatio < 0 {
		return fmt.Errorf("device_pixel_ratio must not be negative")
	}
	return nil
}
