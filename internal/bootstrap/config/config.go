package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	GitHub   GitHubConfig   `mapstructure:"github" yaml:"github"`
	Queue    QueueConfig    `mapstructure:"queue" yaml:"queue"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Notify   NotifyConfig   `mapstructure:"notify" yaml:"notify"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
}

type AppConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Env  string `mapstructure:"env" yaml:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

type GitHubConfig struct {
	BaseURL       string          `mapstructure:"base_url" yaml:"base_url"`
	Token         string          `mapstructure:"token" yaml:"token"`
	APIVersion    string          `mapstructure:"api_version" yaml:"api_version"`
	Timeout       time.Duration   `mapstructure:"timeout" yaml:"timeout"`
	PerPage       int             `mapstructure:"per_page" yaml:"per_page"`
	RatePerSecond float64         `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int             `mapstructure:"burst" yaml:"burst"`
	App           GitHubAppConfig `mapstructure:"app" yaml:"app"`
}

// GitHubAppConfig enables installation auth instead of a static token when AppID is set.
type GitHubAppConfig struct {
	AppID          int64  `mapstructure:"app_id" yaml:"app_id"`
	InstallationID int64  `mapstructure:"installation_id" yaml:"installation_id"`
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path"`
}

type QueueConfig struct {
	Driver  string     `mapstructure:"driver" yaml:"driver"`
	Workers int        `mapstructure:"workers" yaml:"workers"`
	Buffer  int        `mapstructure:"buffer" yaml:"buffer"`
	NATS    NATSConfig `mapstructure:"nats" yaml:"nats"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
	QueueGroup    string `mapstructure:"queue_group" yaml:"queue_group"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type NotifyConfig struct {
	Driver        string     `mapstructure:"driver" yaml:"driver"`
	From          string     `mapstructure:"from" yaml:"from"`
	TemplatesFile string     `mapstructure:"templates_file" yaml:"templates_file"`
	SMTP          SMTPConfig `mapstructure:"smtp" yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingOptions maps the log section onto logging.Options.
func (c LogConfig) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}

func Load(ctx context.Context, configFile string) (Config, error) {
	v, err := newViper(ctx, configFile)
	if err != nil {
		return Config{}, err
	}
	return decode(ctx, v)
}

// Watch reloads the config file on change and hands every valid result to onChange.
// Invalid edits are logged and ignored.
func Watch(ctx context.Context, configFile string, onChange func(Config)) error {
	if onChange == nil {
		return errors.New("config change callback is required")
	}

	v, err := newViper(ctx, configFile)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return errors.New("no config file to watch")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")
	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(logCtx, v)
		if err != nil {
			logging.Warn(logCtx, "ignoring invalid config change", slog.String("path", event.Name), errs.Attr(err))
			return
		}
		logging.Info(logCtx, "config reloaded", slog.String("path", event.Name))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(ctx context.Context, configFile string) (*viper.Viper, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GISSUES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return nil, errs.Wrap(err, "read config")
		}
	} else {
		logging.Debug(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}
	return v, nil
}

func decode(ctx context.Context, v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Debug(
		logging.WithComponent(ctx, "bootstrap.config"),
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("queue_driver", cfg.Queue.Driver),
		slog.String("notify_driver", cfg.Notify.Driver),
	)
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.GitHub.BaseURL) == "" {
		return errors.New("github.base_url is required")
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive, got %s", c.Schedule.Interval)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive, got %d", c.Queue.Workers)
	}
	switch strings.ToLower(c.Queue.Driver) {
	case "local":
	case "nats":
		if strings.TrimSpace(c.Queue.NATS.URL) == "" {
			return errors.New("queue.nats.url is required for the nats driver")
		}
	default:
		return fmt.Errorf("unsupported queue driver %q", c.Queue.Driver)
	}
	switch strings.ToLower(c.Notify.Driver) {
	case "log":
	case "smtp":
		if strings.TrimSpace(c.Notify.SMTP.Host) == "" {
			return errors.New("notify.smtp.host is required for the smtp driver")
		}
	default:
		return fmt.Errorf("unsupported notify driver %q", c.Notify.Driver)
	}
	if app := c.GitHub.App; app.AppID != 0 && (app.InstallationID == 0 || strings.TrimSpace(app.PrivateKeyPath) == "") {
		return errors.New("github.app requires installation_id and private_key_path")
	}
	return nil
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gissues")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".gissues/mirror.sqlite")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("github.base_url", "https://api.github.com/")
	v.SetDefault("github.token", "")
	v.SetDefault("github.api_version", "2022-11-28")
	v.SetDefault("github.timeout", 15*time.Second)
	v.SetDefault("github.per_page", 100)
	v.SetDefault("github.rate_per_second", 10.0)
	v.SetDefault("github.burst", 5)
	v.SetDefault("github.app.app_id", 0)
	v.SetDefault("github.app.installation_id", 0)
	v.SetDefault("github.app.private_key_path", "")

	v.SetDefault("queue.driver", "local")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.buffer", 256)
	v.SetDefault("queue.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("queue.nats.subject_prefix", "gissues.tasks")
	v.SetDefault("queue.nats.queue_group", "gissues-workers")

	v.SetDefault("schedule.interval", time.Hour)

	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.from", "gissues@localhost.com")
	v.SetDefault("notify.templates_file", "")
	v.SetDefault("notify.smtp.host", "")
	v.SetDefault("notify.smtp.port", 25)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")

	v.SetDefault("http.addr", ":8080")
}
