package objectstore

import (
	"fmt"
	"strings"
)

type Mode string

const (
	// ModeInline keeps video bytes in the database row.
	ModeInline      Mode = "inline"
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
	ModeMinIO       Mode = "minio"
)

type Config struct {
	Mode   Mode
	Bucket string

	// GCS
	CredentialsJSON string
	CredentialsFile string
	EmulatorHost    string

	// MinIO
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "inline", "db", "database":
		return ModeInline
	default:
		return Mode(strings.ToLower(strings.TrimSpace(raw)))
	}
}

type ConfigErrorCode string

const (
	ConfigErrorInvalidMode         ConfigErrorCode = "invalid_mode"
	ConfigErrorMissingBucket       ConfigErrorCode = "missing_bucket"
	ConfigErrorMissingEndpoint     ConfigErrorCode = "missing_endpoint"
	ConfigErrorMissingCredentials  ConfigErrorCode = "missing_credentials"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
)

type ConfigError struct {
	Code ConfigErrorCode
	Mode Mode
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("object storage config error (%s) for mode %q", e.Code, e.Mode)
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeInline:
		return nil
	case ModeGCS, ModeGCSEmulator, ModeMinIO:
	default:
		return &ConfigError{Code: ConfigErrorInvalidMode, Mode: c.Mode}
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return &ConfigError{Code: ConfigErrorMissingBucket, Mode: c.Mode}
	}
	switch c.Mode {
	case ModeGCSEmulator:
		if strings.TrimSpace(c.EmulatorHost) == "" {
			return &ConfigError{Code: ConfigErrorMissingEmulatorHost, Mode: c.Mode}
		}
	case ModeMinIO:
		if strings.TrimSpace(c.Endpoint) == "" {
			return &ConfigError{Code: ConfigErrorMissingEndpoint, Mode: c.Mode}
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return &ConfigError{Code: ConfigErrorMissingCredentials, Mode: c.Mode}
		}
	}
	return nil
}
