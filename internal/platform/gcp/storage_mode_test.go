package gcp

import (
	"errors"
	"testing"
)

func TestStorageConfigFromEnv(t *testing.T) {
	cases := []struct {
		name         string
		mode         string
		host         string
		wantMode     StorageMode
		wantInferred bool
		wantErr      bool
	}{
		{name: "default gcs", wantMode: StorageModeGCS},
		{name: "explicit gcs ignores host", mode: "gcs", host: "http://fake-gcs:4443", wantMode: StorageModeGCS},
		{name: "explicit emulator", mode: "gcs_emulator", host: "http://fake-gcs:4443", wantMode: StorageModeGCSEmulator},
		{name: "inferred emulator", host: "http://fake-gcs:4443", wantMode: StorageModeGCSEmulator, wantInferred: true},
		{name: "invalid mode", mode: "local", wantErr: true},
		{name: "emulator without host", mode: "gcs_emulator", wantErr: true},
		{name: "emulator host without scheme", mode: "gcs_emulator", host: "fake-gcs:4443", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OBJECT_STORAGE_MODE", tc.mode)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.host)

			cfg, err := StorageConfigFromEnv()
			if tc.wantErr {
				var cfgErr *StorageConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected StorageConfigError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("StorageConfigFromEnv: %v", err)
			}
			if cfg.Mode != tc.wantMode {
				t.Fatalf("mode: want=%q got=%q", tc.wantMode, cfg.Mode)
			}
			if cfg.Inferred != tc.wantInferred {
				t.Fatalf("inferred: want=%v got=%v", tc.wantInferred, cfg.Inferred)
			}
		})
	}
}
