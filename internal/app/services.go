package app

import (
	"fmt"

	"github.com/yungbote/forfeit-backend/internal/consequence"
	"github.com/yungbote/forfeit-backend/internal/enforcement"
	"github.com/yungbote/forfeit-backend/internal/grading"
	"github.com/yungbote/forfeit-backend/internal/notify"
	"github.com/yungbote/forfeit-backend/internal/platform/entropy"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/observability"
)

type Services struct {
	Metrics      *observability.Metrics
	Notifier     notify.Dispatcher
	Executor     consequence.Executor
	Grading      grading.Service
	Orchestrator *enforcement.Orchestrator
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")
	metrics := observability.NewMetrics()

	notifier, err := notify.NewDispatcher(log, repos.Preference, repos.User, repos.NotificationLog, clients.Mail, metrics)
	if err != nil {
		return Services{}, fmt.Errorf("init notification dispatcher: %w", err)
	}

	adapters, err := wireAdapters(log, repos, clients)
	if err != nil {
		return Services{}, err
	}
	executor := consequence.NewExecutor(log, repos.Ledger, metrics, adapters...)

	var ai *grading.AIGrader
	if clients.OpenAI != nil {
		ai = grading.NewAIGrader(log, clients.OpenAI)
	}
	collector := grading.NewCollector(log, grading.DefaultCollectorConfig(), clients.GitHub, clients.Buckets)
	gradingSvc := grading.NewService(log, repos.Submission, repos.Deadline, collector, ai, notifier, metrics)

	orchestrator := enforcement.NewOrchestrator(
		log,
		cfg.Enforcement,
		repos.Deadline,
		repos.Ledger,
		consequence.NewRoulette(entropy.Secure()),
		executor,
		notifier,
		clients.Locker,
		metrics,
	)

	return Services{
		Metrics:      metrics,
		Notifier:     notifier,
		Executor:     executor,
		Grading:      gradingSvc,
		Orchestrator: orchestrator,
	}, nil
}

// wireAdapters registers a channel only when its rail is configured; the
// executor records the rest as unavailable.
func wireAdapters(log *logger.Logger, repos Repos, clients Clients) ([]consequence.Adapter, error) {
	var out []consequence.Adapter

	if clients.Stripe != nil {
		charities, err := consequence.CharitiesFromEnv()
		if err != nil {
			return nil, fmt.Errorf("load charity whitelist: %w", err)
		}
		out = append(out, consequence.NewMonetaryAdapter(log, clients.Stripe, repos.User, charities))
	}

	// Social posts fall back to text only when there is no bucket to read
	// kompromat images from.
	if clients.X != nil {
		social, err := consequence.NewSocialAdapter(log, repos.SocialAccount, repos.Kompromat, clients.Buckets, clients.X)
		if err != nil {
			return nil, fmt.Errorf("init social channel: %w", err)
		}
		out = append(out, social)
	}

	if clients.Buckets != nil {
		email, err := consequence.NewEmailAdapter(log, repos.Kompromat, repos.Contact, repos.User, clients.Buckets, clients.Mail, entropy.Secure())
		if err != nil {
			return nil, fmt.Errorf("init email channel: %w", err)
		}
		out = append(out, email)
	}
	return out, nil
}
