package app

import (
	"errors"
	"fmt"

	"github.com/yungbote/forfeit-backend/internal/platform/gcp"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

var newBucketServiceWithConfig = gcp.NewBucketServiceWithConfig

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidConfig StorageProviderBootstrapErrorCode = "invalid_config"
	StorageProviderBootstrapErrorConnectFailed StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveBucketService returns a nil service when no bucket is configured, so
// the asset-backed channels and uploaded proofs are reported unavailable
// instead of failing startup.
func resolveBucketService(log *logger.Logger, cfg gcp.BucketConfig) (gcp.BucketService, error) {
	if cfg.KompromatBucket == "" && cfg.ProofBucket == "" {
		log.Warn("Object storage not configured; asset channels and uploaded proofs disabled")
		return nil, nil
	}
	log.Info("Selecting object storage provider",
		"mode", cfg.Storage.Mode,
		"inferred", cfg.Storage.Inferred,
		"emulator_host", cfg.Storage.EmulatorHost,
	)
	bucket, err := newBucketServiceWithConfig(log, cfg)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(cfg.Storage, err)
		log.Error("Object storage provider bootstrap failed",
			"mode", cfg.Storage.Mode,
			"emulator_host", cfg.Storage.EmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return bucket, nil
}

func classifyStorageProviderBootstrapError(sc gcp.StorageConfig, err error) error {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *gcp.StorageConfigError
	if errors.As(err, &cfgErr) {
		code = StorageProviderBootstrapErrorInvalidConfig
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Mode:         string(sc.Mode),
		EmulatorHost: sc.EmulatorHost,
		Cause:        err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return StorageProviderBootstrapErrorConnectFailed
}
