package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/app"
)

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// daily-job runs the recurring materializer and the budget re-evaluation once, for cron-style schedulers.
func main() {
	job, cleanup, err := app.NewDailyJobFromConfig()
	if err != nil {
		log.Fatalf("failed to initialize daily job: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	summary, err := job.Run(ctx)
	stop()
	cleanup()
	if err != nil {
		log.Fatalf("daily job failed: %v", err)
	}
	if summary.Recurring.Failed > 0 || summary.Budgets.Failed > 0 {
		os.Exit(2)
	}
}
