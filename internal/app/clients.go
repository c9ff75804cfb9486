package app

import (
	"fmt"

	"github.com/yungbote/forfeit-backend/internal/platform/gcp"
	"github.com/yungbote/forfeit-backend/internal/platform/github"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/openai"
	"github.com/yungbote/forfeit-backend/internal/platform/redislock"
	"github.com/yungbote/forfeit-backend/internal/platform/sendgrid"
	"github.com/yungbote/forfeit-backend/internal/platform/stripe"
	"github.com/yungbote/forfeit-backend/internal/platform/xsocial"
)

// Clients holds the external rails. Only Mail and Locker are required; a nil
// optional client disables the channel or grading tier it backs.
type Clients struct {
	Mail    sendgrid.Client
	Locker  redislock.Locker
	Stripe  stripe.Client
	X       xsocial.Client
	OpenAI  openai.Client
	GitHub  github.Client
	Buckets gcp.BucketService
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	mail, err := sendgrid.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init sendgrid client: %w", err)
	}
	locker, err := redislock.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init run locker: %w", err)
	}

	out := Clients{Mail: mail, Locker: locker}

	if c, err := stripe.NewFromEnv(log); err != nil {
		log.Warn("Stripe unavailable; monetary channel disabled", "error", err)
	} else {
		out.Stripe = c
	}
	if c, err := xsocial.NewFromEnv(log); err != nil {
		log.Warn("X client unavailable; social channel disabled", "error", err)
	} else {
		out.X = c
	}
	if c, err := openai.NewFromEnv(log); err != nil {
		log.Warn("OpenAI unavailable; AI grading disabled", "error", err)
	} else {
		out.OpenAI = c
	}
	if c, err := github.NewFromEnv(log); err != nil {
		log.Warn("GitHub client unavailable; commit signals disabled", "error", err)
	} else {
		out.GitHub = c
	}

	bucketCfg, err := gcp.BucketConfigFromEnv()
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}
	buckets, err := resolveBucketService(log, bucketCfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}
	out.Buckets = buckets

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Buckets != nil {
		_ = c.Buckets.Close()
	}
	if c.Locker != nil {
		_ = c.Locker.Close()
	}
}
