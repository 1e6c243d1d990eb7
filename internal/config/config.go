package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Whisper struct {
		Python      string `yaml:"python"`
		FFmpeg      string `yaml:"ffmpeg"`
		Model       string `yaml:"model"`
		Device      string `yaml:"device"`
		ComputeType string `yaml:"compute_type"`
		HFToken     string `yaml:"hf_token"`
		WorkDir     string `yaml:"work_dir"`

		// MaxConcurrent bounds how many tasks hold a loaded model at once
		MaxConcurrent int `yaml:"max_concurrent"`
	} `yaml:"whisper"`

	Summarizer struct {
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		Model          string  `yaml:"model"`
		Temperature    float64 `yaml:"temperature"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		MaxChunkSize   int     `yaml:"max_chunk_size"`
	} `yaml:"summarizer"`

	Workers struct {
		Count     int `yaml:"count"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"workers"`

	Storage struct {
		Backend   string `yaml:"backend"`
		UploadDir string `yaml:"upload_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`

	Logging struct {
		Level       string `yaml:"level"`
		Environment string `yaml:"environment"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 5000
	c.Whisper.Python = "python"
	c.Whisper.FFmpeg = "ffmpeg"
	c.Whisper.Model = "large-v2"
	c.Whisper.Device = "cpu"
	c.Whisper.ComputeType = "int8"
	c.Whisper.WorkDir = "temp"
	c.Whisper.MaxConcurrent = 1
	c.Summarizer.BaseURL = "http://localhost:8000"
	c.Summarizer.Model = "mistral"
	c.Summarizer.Temperature = 0.3
	c.Summarizer.TimeoutSeconds = 120
	c.Summarizer.MaxChunkSize = 5000
	c.Workers.Count = 5
	c.Workers.QueueSize = 100
	c.Storage.Backend = "sqlite"
	c.Storage.UploadDir = "uploads"
	c.Storage.OutputDir = "summaries"
	c.Storage.Database = "transcription.db"
	c.Cleanup.IntervalMinutes = 60
	c.Cleanup.MaxAgeHours = 24
	c.GoogleDrive.CredentialsFile = "config/credentials.json"
	c.GoogleDrive.TokenFile = "config/token.json"
	c.GoogleDrive.FolderName = "Reports"
	c.Limits.MaxFileSizeMB = 500
	c.Logging.Level = "info"
	c.Logging.Environment = "local"
	return &c
}

// Load reads .env, then the YAML file at path over the defaults, then
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	overrides := map[string]*string{
		"LOG_LEVEL":     &c.Logging.Level,
		"ENVIRONMENT":   &c.Logging.Environment,
		"LLM_BASE_URL":  &c.Summarizer.BaseURL,
		"LLM_API_KEY":   &c.Summarizer.APIKey,
		"LLM_MODEL":     &c.Summarizer.Model,
		"HF_TOKEN":      &c.Whisper.HFToken,
		"DATABASE_PATH": &c.Storage.Database,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	return nil
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be positive, got %d", c.Workers.Count)
	}
	if c.Workers.QueueSize <= 0 {
		return fmt.Errorf("workers.queue_size must be positive, got %d", c.Workers.QueueSize)
	}
	if c.Summarizer.MaxChunkSize <= 0 {
		return fmt.Errorf("summarizer.max_chunk_size must be positive, got %d", c.Summarizer.MaxChunkSize)
	}
	switch c.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("storage.backend must be sqlite or memory, got %q", c.Storage.Backend)
	}
	return nil
}
