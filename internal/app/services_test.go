package app

import (
	"testing"

	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/xsocial"
)

type stubX struct{ xsocial.Client }

func TestWireAdaptersSocialWithoutBucket(t *testing.T) {
	adapters, err := wireAdapters(testLogger(t), Repos{}, Clients{X: stubX{}})
	if err != nil {
		t.Fatalf("wireAdapters: %v", err)
	}
	if len(adapters) != 1 {
		t.Fatalf("adapters: want 1 got %d", len(adapters))
	}
	if got := adapters[0].Type(); got != types.ConsequenceHumiliationSocial {
		t.Fatalf("channel: want %s got %s", types.ConsequenceHumiliationSocial, got)
	}
}

func TestWireAdaptersNothingConfigured(t *testing.T) {
	adapters, err := wireAdapters(testLogger(t), Repos{}, Clients{})
	if err != nil {
		t.Fatalf("wireAdapters: %v", err)
	}
	if len(adapters) != 0 {
		t.Fatalf("adapters: want none got %d", len(adapters))
	}
}
