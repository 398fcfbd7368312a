// cmd/checkoverdues/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"acervo/internal/catalog"
	"acervo/internal/circulation"
	"acervo/internal/config"
	"acervo/internal/database"
	"acervo/internal/membership"
	"acervo/internal/notify"
	"acervo/internal/overdue"
	"acervo/internal/rules"
)

func main() {
	schedule := flag.String("schedule", "", `cron expression, e.g. "0 8 * * *"; empty runs once and exits`)
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx := context.Background()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	var sender notify.Sender
	if smtp := notify.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom); smtp != nil {
		sender = notify.NewBreakerSender(smtp)
	}

	rulesSvc := rules.NewService(db, log)
	catalogSvc := catalog.NewService(db, nil, log)
	memberSvc := membership.NewService(db, log)
	notifySvc := notify.NewService(db, sender, log)
	loanSvc := circulation.NewService(db, rulesSvc, catalogSvc, memberSvc, notifySvc, cfg.InternalUseUserID, log)

	sweep := overdue.NewSweep(rulesSvc, loanSvc, catalogSvc, memberSvc, notifySvc, log)

	if *schedule == "" {
		if _, err := sweep.Run(ctx); err != nil {
			log.Fatal("sweep failed", zap.Error(err))
		}
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		if _, err := sweep.Run(ctx); err != nil {
			log.Error("sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("invalid schedule", zap.String("schedule", *schedule), zap.Error(err))
	}

	log.Info("overdue sweep scheduled", zap.String("schedule", *schedule))
	c.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	<-c.Stop().Done()
}
