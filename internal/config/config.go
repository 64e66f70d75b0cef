// Package config loads placetap settings from defaults, an optional YAML file,
// a .env file and PLACETAP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/model"
)

const envPrefix = "PLACETAP"

type BrowserConfig struct {
	Headless  bool   `mapstructure:"headless"`
	Proxy     string `mapstructure:"proxy" validate:"omitempty,url"`
	UserAgent string `mapstructure:"user_agent"`
	ExecPath  string `mapstructure:"exec_path"`
	Width     int    `mapstructure:"width" validate:"min=0"`
	Height    int    `mapstructure:"height" validate:"min=0"`
	Lang      string `mapstructure:"lang" validate:"required"`
}

type PipelineConfig struct {
	UseDetailView      bool    `mapstructure:"use_detail_view"`
	FetchReviews       bool    `mapstructure:"fetch_reviews"`
	FetchMedia         bool    `mapstructure:"fetch_media"`
	MaxResults         int     `mapstructure:"max_results" validate:"min=1,max=500"`
	MaxScrollRounds    int     `mapstructure:"max_scroll_rounds" validate:"min=1"`
	ImageScrollRounds  int     `mapstructure:"image_scroll_rounds" validate:"min=0"`
	ReviewScrollRounds int     `mapstructure:"review_scroll_rounds" validate:"min=0"`
	ShowMoreLimit      int     `mapstructure:"show_more_limit" validate:"min=0"`
	MinRating          float64 `mapstructure:"min_rating" validate:"min=0,max=5"`
	FallbackCategory   string  `mapstructure:"fallback_category"`
}

type TimeoutConfig struct {
	Element    time.Duration `mapstructure:"element" validate:"gt=0"`
	Navigation time.Duration `mapstructure:"navigation" validate:"gt=0"`
	Operation  time.Duration `mapstructure:"operation" validate:"gt=0"`
	SettleMin  time.Duration `mapstructure:"settle_min" validate:"min=0"`
	SettleMax  time.Duration `mapstructure:"settle_max" validate:"min=0"`
	Click      time.Duration `mapstructure:"click" validate:"min=0"`
}

type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

type GeoConfig struct {
	Filter    bool    `mapstructure:"filter"`
	RadiusKm  float64 `mapstructure:"radius_km" validate:"min=0"`
	Endpoint  string  `mapstructure:"endpoint" validate:"omitempty,url"`
	UserAgent string  `mapstructure:"user_agent"`
}

type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	Dir   string `mapstructure:"dir"`
}

// Config is the full settings tree.
type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Geo      GeoConfig      `mapstructure:"geo"`
	Log      LogConfig      `mapstructure:"log"`
}

func Default() Config {
	o := model.DefaultOptions()
	return Config{
		Browser: BrowserConfig{
			Headless: true,
			Width:    1366,
			Height:   900,
			Lang:     "en",
		},
		Pipeline: PipelineConfig{
			UseDetailView:      o.UseDetailView,
			FetchReviews:       o.FetchReviews,
			FetchMedia:         o.FetchMedia,
			MaxResults:         o.MaxResults,
			MaxScrollRounds:    o.MaxScrollRounds,
			ImageScrollRounds:  o.ImageScrollRounds,
			ReviewScrollRounds: o.ReviewScrollRounds,
			ShowMoreLimit:      o.ShowMoreLimit,
		},
		Timeouts: TimeoutConfig{
			Element:    o.ElementTimeout,
			Navigation: o.NavigationTimeout,
			Operation:  30 * time.Second,
			SettleMin:  o.SettleMin,
			SettleMax:  o.SettleMax,
			Click:      o.ClickDelay,
		},
		Storage: StorageConfig{OutputDir: "."},
		Geo:     GeoConfig{RadiusKm: 0},
	}
}

// Load builds a Config. configPath may be empty, in which case ./placetap.yaml and
// ~/.config/placetap/placetap.yaml are tried. envFile defaults to ./.env; a missing file is not an error.
func Load(configPath, envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("placetap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "placetap"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	defaults := map[string]any{
		"browser.headless":              d.Browser.Headless,
		"browser.proxy":                 d.Browser.Proxy,
		"browser.user_agent":            d.Browser.UserAgent,
		"browser.exec_path":             d.Browser.ExecPath,
		"browser.width":                 d.Browser.Width,
		"browser.height":                d.Browser.Height,
		"browser.lang":                  d.Browser.Lang,
		"pipeline.use_detail_view":      d.Pipeline.UseDetailView,
		"pipeline.fetch_reviews":        d.Pipeline.FetchReviews,
		"pipeline.fetch_media":          d.Pipeline.FetchMedia,
		"pipeline.max_results":          d.Pipeline.MaxResults,
		"pipeline.max_scroll_rounds":    d.Pipeline.MaxScrollRounds,
		"pipeline.image_scroll_rounds":  d.Pipeline.ImageScrollRounds,
		"pipeline.review_scroll_rounds": d.Pipeline.ReviewScrollRounds,
		"pipeline.show_more_limit":      d.Pipeline.ShowMoreLimit,
		"pipeline.min_rating":           d.Pipeline.MinRating,
		"pipeline.fallback_category":    d.Pipeline.FallbackCategory,
		"timeouts.element":              d.Timeouts.Element,
		"timeouts.navigation":           d.Timeouts.Navigation,
		"timeouts.operation":            d.Timeouts.Operation,
		"timeouts.settle_min":           d.Timeouts.SettleMin,
		"timeouts.settle_max":           d.Timeouts.SettleMax,
		"timeouts.click":                d.Timeouts.Click,
		"storage.output_dir":            d.Storage.OutputDir,
		"geo.filter":                    d.Geo.Filter,
		"geo.radius_km":                 d.Geo.RadiusKm,
		"geo.endpoint":                  d.Geo.Endpoint,
		"geo.user_agent":                d.Geo.UserAgent,
		"log.debug":                     d.Log.Debug,
		"log.dir":                       d.Log.Dir,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Timeouts.SettleMax < c.Timeouts.SettleMin {
		return fmt.Errorf("invalid config: timeouts.settle_max %s below settle_min %s", c.Timeouts.SettleMax, c.Timeouts.SettleMin)
	}
	return nil
}

// Options maps the pipeline and timeout sections onto the engine options.
func (c Config) Options() model.Options {
	return model.Options{
		UseDetailView:      c.Pipeline.UseDetailView,
		FetchReviews:       c.Pipeline.FetchReviews,
		FetchMedia:         c.Pipeline.FetchMedia,
		MaxResults:         c.Pipeline.MaxResults,
		MaxScrollRounds:    c.Pipeline.MaxScrollRounds,
		ImageScrollRounds:  c.Pipeline.ImageScrollRounds,
		ReviewScrollRounds: c.Pipeline.ReviewScrollRounds,
		ShowMoreLimit:      c.Pipeline.ShowMoreLimit,
		ElementTimeout:     c.Timeouts.Element,
		NavigationTimeout:  c.Timeouts.Navigation,
		SettleMin:          c.Timeouts.SettleMin,
		SettleMax:          c.Timeouts.SettleMax,
		ClickDelay:         c.Timeouts.Click,
		FallbackCategory:   c.Pipeline.FallbackCategory,
	}
}

// Chrome maps the browser section onto the live session settings.
func (c Config) Chrome() browser.ChromeConfig {
	return browser.ChromeConfig{
		Headless:   c.Browser.Headless,
		ProxyURL:   c.Browser.Proxy,
		UserAgent:  c.Browser.UserAgent,
		ExecPath:   c.Browser.ExecPath,
		Width:      c.Browser.Width,
		Height:     c.Browser.Height,
		OpTimeout:  c.Timeouts.Operation,
		NavTimeout: c.Timeouts.Navigation,
	}
}
