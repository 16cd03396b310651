// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package config loads the runtime's configuration from a YAML file
// (path from CONFIG_PATH, default "config.yaml"), then lets environment
// variables and Kubernetes-secret-mount files override any secret-shaped
// field, mirroring how the teacher resolves object-store credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/AMD-AGI/primus-workflows/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the top-level runtime configuration.
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	S3       S3Config       `json:"s3" yaml:"s3"`
	Executor ExecutorConfig `json:"executor" yaml:"executor"`
	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// DatabaseConfig holds the relational store DSN.
type DatabaseConfig struct {
	// DSN is the Postgres connection string. Overridden by SQLALCHEMY_DATABASE_URI.
	DSN string `json:"dsn" yaml:"dsn"`
}

// S3Config holds object-store connectivity and presigned-URL settings.
type S3Config struct {
	EndpointURL string `json:"endpointUrl" yaml:"endpointUrl"`
	RegionName  string `json:"regionName" yaml:"regionName"`
	AccessKeyID string `json:"accessKeyId" yaml:"accessKeyId"`
	SecretKey   string `json:"secretAccessKey" yaml:"secretAccessKey"`
	Bucket      string `json:"bucket" yaml:"bucket"`
	Secure      bool   `json:"secure" yaml:"secure"`

	// PresignedTimeoutSeconds is the TTL minted for artifact GET URLs.
	// Overridden by S3_PRESIGNED_TIMEOUT (seconds).
	PresignedTimeoutSeconds int `json:"presignedTimeoutSeconds" yaml:"presignedTimeoutSeconds"`

	// SecretPath, if set, is a directory (Kubernetes secret mount) holding
	// access_key / secret_key / endpoint / bucket files. access_key and
	// secret_key override AccessKeyID and SecretKey; endpoint and bucket only
	// fill EndpointURL and Bucket when those are still empty.
	SecretPath string `json:"secretPath" yaml:"secretPath"`
}

// PresignedTimeout returns the configured TTL, defaulting to 15 minutes.
func (c S3Config) PresignedTimeout() time.Duration {
	if c.PresignedTimeoutSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.PresignedTimeoutSeconds) * time.Second
}

// ExecutorConfig holds the dispatch client's outbound settings.
type ExecutorConfig struct {
	// BaseURL is the external task queue's base address.
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`

	// CallbackTimeoutSeconds bounds the HTTP round trip to the executor.
	// Overridden by CALLBACK_TIMEOUT (seconds).
	CallbackTimeoutSeconds int `json:"callbackTimeoutSeconds" yaml:"callbackTimeoutSeconds"`
}

// CallbackTimeout returns the configured timeout, defaulting to 30s.
func (c ExecutorConfig) CallbackTimeout() time.Duration {
	if c.CallbackTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.CallbackTimeoutSeconds) * time.Second
}

// HTTPConfig holds settings consumed by the (out-of-scope) REST layer.
type HTTPConfig struct {
	Port int `json:"port" yaml:"port"`

	// MaxContentLengthBytes caps artifact upload size.
	// Overridden by MAX_CONTENT_LENGTH (bytes).
	MaxContentLengthBytes int64 `json:"maxContentLengthBytes" yaml:"maxContentLengthBytes"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json" yaml:"json"`
}

// LoadConfig reads the YAML file at CONFIG_PATH (default "config.yaml") and
// applies environment-variable overrides for every secret-shaped field.
func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := &Config{}
	if configFile, err := os.Open(configPath); err == nil {
		defer configFile.Close()
		decoder := yaml.NewDecoder(configFile)
		if err := decoder.Decode(cfg); err != nil {
			return nil, errors.NewError().
				WithCode(errors.CodeInternal).
				WithMessage("failed to parse config file").
				WithError(err)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.NewError().
			WithCode(errors.CodeInternal).
			WithMessage("failed to open config file").
			WithError(err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLALCHEMY_DATABASE_URI"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("S3_ENDPOINT_URL"); v != "" {
		cfg.S3.EndpointURL = v
	}
	if v := os.Getenv("S3_REGION_NAME"); v != "" {
		cfg.S3.RegionName = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		cfg.S3.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.S3.SecretKey = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("S3_PRESIGNED_TIMEOUT"); v != "" {
		if secs, err := parseSeconds(v); err == nil {
			cfg.S3.PresignedTimeoutSeconds = secs
		}
	}
	if v := os.Getenv("CALLBACK_TIMEOUT"); v != "" {
		if secs, err := parseSeconds(v); err == nil {
			cfg.Executor.CallbackTimeoutSeconds = secs
		}
	}
	if v := os.Getenv("MAX_CONTENT_LENGTH"); v != "" {
		if n, err := parseSeconds(v); err == nil {
			cfg.HTTP.MaxContentLengthBytes = int64(n)
		}
	}

	// Kubernetes-secret-mount override, same layout as the object store's
	// other deployments: access_key / secret_key / endpoint / bucket files.
	if cfg.S3.SecretPath != "" {
		if data, err := os.ReadFile(cfg.S3.SecretPath + "/access_key"); err == nil {
			cfg.S3.AccessKeyID = string(data)
		}
		if data, err := os.ReadFile(cfg.S3.SecretPath + "/secret_key"); err == nil {
			cfg.S3.SecretKey = string(data)
		}
		if data, err := os.ReadFile(cfg.S3.SecretPath + "/endpoint"); err == nil && cfg.S3.EndpointURL == "" {
			cfg.S3.EndpointURL = string(data)
		}
		if data, err := os.ReadFile(cfg.S3.SecretPath + "/bucket"); err == nil && cfg.S3.Bucket == "" {
			cfg.S3.Bucket = string(data)
		}
	}
}

func parseSeconds(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
