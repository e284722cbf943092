// This file defines the configuration structure for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
	Workspace struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"workspace"`
	Remote   Remote          `mapstructure:"remote"`
	Cameras  []models.Camera `mapstructure:"cameras"`
	Encoder  Encoder         `mapstructure:"encoder"`
	Jobs     Jobs            `mapstructure:"jobs"`
	Schedule struct {
		// NightlyConvert is a "HH:MM" time at which yesterday's images of
		// every camera are converted. Empty disables it.
		NightlyConvert  string `mapstructure:"nightly_convert"`
		DeleteOriginals bool   `mapstructure:"delete_originals"`
	} `mapstructure:"schedule"`
	Convert struct {
		Poster bool `mapstructure:"poster"`
	} `mapstructure:"convert"`
}

// Remote selects and configures the archive storage driver.
type Remote struct {
	Driver          string `mapstructure:"driver"` // ftp, sftp, s3, gcs, local
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	PrivateKey      string `mapstructure:"private_key"`
	Timeout         int    `mapstructure:"timeout"` // seconds
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Root            string `mapstructure:"root"` // local driver only
}

// Encoder holds the ffmpeg invocation policy.
type Encoder struct {
	Binary      string `mapstructure:"binary"`
	MinVersion  string `mapstructure:"min_version"`
	FrameRate   int    `mapstructure:"frame_rate"`
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	Codec       string `mapstructure:"codec"`
	PixelFormat string `mapstructure:"pixel_format"`
	Preset      string `mapstructure:"preset"`
	CRF         int    `mapstructure:"crf"`
}

// Jobs tunes the background job manager.
type Jobs struct {
	MaxWorkers       int `mapstructure:"max_workers"`
	RetentionMinutes int `mapstructure:"retention_minutes"`
	SweepInterval    int `mapstructure:"sweep_interval"` // minutes
	LogLimit         int `mapstructure:"log_limit"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory or /usr/ssirn and unmarshals it into a Config struct.
// A .env file, if present, is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("/usr/ssirn")

	// SSIRN_REMOTE_HOST overrides `remote.host`, and so on.
	v.SetEnvPrefix("SSIRN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The archive has always been configured through FTP_* variables.
	_ = v.BindEnv("remote.host", "SSIRN_REMOTE_HOST", "FTP_HOST")
	_ = v.BindEnv("remote.port", "SSIRN_REMOTE_PORT", "FTP_PORT")
	_ = v.BindEnv("remote.user", "SSIRN_REMOTE_USER", "FTP_USER")
	_ = v.BindEnv("remote.password", "SSIRN_REMOTE_PASSWORD", "FTP_PASSWORD")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8002)
	v.SetDefault("database.path", "./ssirn.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("workspace.path", filepath.Join(os.TempDir(), "ssirn"))

	v.SetDefault("remote.driver", "ftp")
	v.SetDefault("remote.port", 21)
	v.SetDefault("remote.timeout", 30)
	v.SetDefault("cameras", []map[string]any{
		{"id": "cam1", "name": "Camera 1", "root": "/homes/ha/camFTP/feed"},
	})

	v.SetDefault("encoder.binary", "ffmpeg")
	v.SetDefault("encoder.min_version", "4.0.0")
	v.SetDefault("encoder.frame_rate", 10)
	v.SetDefault("encoder.width", 1280)
	v.SetDefault("encoder.height", 720)
	v.SetDefault("encoder.codec", "libx264")
	v.SetDefault("encoder.pixel_format", "yuv420p")
	v.SetDefault("encoder.preset", "fast")
	v.SetDefault("encoder.crf", 28)

	v.SetDefault("jobs.max_workers", 2)
	v.SetDefault("jobs.retention_minutes", 60)
	v.SetDefault("jobs.sweep_interval", 10)
	v.SetDefault("jobs.log_limit", 100)

	v.SetDefault("schedule.nightly_convert", "")
	v.SetDefault("schedule.delete_originals", false)
	v.SetDefault("convert.poster", false)
}
