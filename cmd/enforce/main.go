// Command enforce runs a single enforcement pass and prints its summary as
// JSON. It exits non-zero when the run was locked out or any item failed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yungbote/forfeit-backend/internal/app"
	"github.com/yungbote/forfeit-backend/internal/platform/shutdown"
)

func main() {
	reminders := flag.Bool("reminders", false, "send deadline reminders instead of enforcing")
	flag.Parse()

	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	code := run(ctx, a, *reminders)
	stop()
	a.Close()
	os.Exit(code)
}

func run(ctx context.Context, a *app.App, reminders bool) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if reminders {
		sum := a.Services.Orchestrator.RemindUpcoming(ctx)
		_ = enc.Encode(sum)
		if sum.Locked || sum.Error != "" {
			return 1
		}
		return 0
	}

	sum := a.Services.Orchestrator.Run(ctx)
	_ = enc.Encode(sum)
	if sum.Locked || sum.Failed > 0 {
		return 1
	}
	return 0
}
