package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

type StorageConfig struct {
	Mode         StorageMode
	EmulatorHost string
	// Inferred is set when the mode came from STORAGE_EMULATOR_HOST alone.
	Inferred bool
}

func (cfg StorageConfig) IsEmulator() bool { return cfg.Mode == StorageModeGCSEmulator }

type StorageConfigError struct {
	Mode         string
	EmulatorHost string
	Reason       string
	Cause        error
}

func (e *StorageConfigError) Error() string {
	if e == nil {
		return "invalid object storage config"
	}
	msg := fmt.Sprintf("invalid object storage config (mode=%q): %s", e.Mode, e.Reason)
	if e.EmulatorHost != "" {
		msg += fmt.Sprintf(" (STORAGE_EMULATOR_HOST=%q)", e.EmulatorHost)
	}
	return msg
}

func (e *StorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// StorageConfigFromEnv reads OBJECT_STORAGE_MODE and STORAGE_EMULATOR_HOST.
// An emulator host without an explicit mode selects the emulator.
func StorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{EmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", "")}
	raw := envutil.String("OBJECT_STORAGE_MODE", "")
	switch StorageMode(strings.ToLower(raw)) {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
			cfg.Inferred = true
		}
	case StorageModeGCS:
		cfg.Mode = StorageModeGCS
	case StorageModeGCSEmulator:
		cfg.Mode = StorageModeGCSEmulator
	default:
		return cfg, &StorageConfigError{Mode: raw, Reason: "allowed modes are gcs and gcs_emulator"}
	}
	return cfg, cfg.Validate()
}

func (cfg StorageConfig) Validate() error {
	switch cfg.Mode {
	case StorageModeGCS:
		return nil
	case StorageModeGCSEmulator:
	default:
		return &StorageConfigError{Mode: string(cfg.Mode), Reason: "allowed modes are gcs and gcs_emulator"}
	}
	if cfg.EmulatorHost == "" {
		return &StorageConfigError{Mode: string(cfg.Mode), Reason: "emulator mode requires STORAGE_EMULATOR_HOST"}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &StorageConfigError{
			Mode:         string(cfg.Mode),
			EmulatorHost: cfg.EmulatorHost,
			Reason:       "emulator host must be an absolute URL like http://fake-gcs:4443",
			Cause:        err,
		}
	}
	return nil
}
