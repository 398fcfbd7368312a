// cmd/api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"acervo/internal/catalog"
	"acervo/internal/circulation"
	"acervo/internal/config"
	"acervo/internal/database"
	"acervo/internal/membership"
	"acervo/internal/notify"
	"acervo/internal/reports"
	"acervo/internal/rules"
	"acervo/internal/telemetry"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "acervo-api")
	if err != nil {
		log.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer shutdownTracing(ctx)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	issuer := membership.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	var sender notify.Sender
	if smtp := notify.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom); smtp != nil {
		sender = notify.NewBreakerSender(smtp)
	}

	rulesSvc := rules.NewService(db, log)
	searcher := catalog.NewSearcher(cfg.MeiliHost, cfg.MeiliAPIKey, cfg.MeiliIndex)
	catalogSvc := catalog.NewService(db, searcher, log)
	memberSvc := membership.NewService(db, log)
	notifySvc := notify.NewService(db, sender, log)
	loanSvc := circulation.NewService(db, rulesSvc, catalogSvc, memberSvc, notifySvc, cfg.InternalUseUserID, log)
	reportSvc := reports.NewService(db)

	rulesHandler := rules.NewHandler(rulesSvc)
	catalogHandler := catalog.NewHandler(catalogSvc)
	memberHandler := membership.NewHandler(memberSvc, issuer)
	loanHandler := circulation.NewHandler(loanSvc)
	notifyHandler := notify.NewHandler(notifySvc)
	reportHandler := reports.NewHandler(reportSvc)

	requireAuth := membership.RequireAuth(issuer)
	requireAdmin := membership.RequireRole(issuer, membership.RoleAdmin)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Route("/api", func(r chi.Router) {
		r.Get("/rules", rulesHandler.HandleGet)
		r.With(requireAdmin).Put("/rules", rulesHandler.HandleUpdate)

		r.Route("/books", func(r chi.Router) {
			r.Get("/", catalogHandler.HandleListBooks)
			r.Get("/search", catalogHandler.HandleSearch)
			r.Get("/{id}", catalogHandler.HandleGetBook)
			r.With(requireAdmin).Post("/", catalogHandler.HandleAddBook)
			r.With(requireAdmin).Put("/{id}/reserve", catalogHandler.HandleSetReserved)
			r.With(requireAdmin).Delete("/{id}", catalogHandler.HandleRemoveBook)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/login", memberHandler.HandleLogin)
			r.With(requireAdmin).Post("/", memberHandler.HandleRegister)
			r.With(requireAdmin).Get("/", memberHandler.HandleListUsers)
			r.With(requireAdmin).Put("/{id}/role", memberHandler.HandleUpdateRole)
			r.With(requireAuth).Get("/{id}", memberHandler.HandleGetUser)
		})

		r.Route("/loans", func(r chi.Router) {
			// Self-service: the body carries the student's own credentials.
			r.Post("/", loanHandler.HandleBorrow)
			r.Put("/{id}/renew", loanHandler.HandleRenew)
			r.Post("/{id}/preview-renew", loanHandler.HandlePreviewRenew)
			r.Put("/{id}/extend", loanHandler.HandleExtend)
			r.Post("/{id}/preview-extend", loanHandler.HandlePreviewExtend)

			r.With(requireAuth).Get("/active", loanHandler.HandleListActive)
			r.With(requireAuth).Get("/user/{userId}", loanHandler.HandleListUser)
			r.With(requireAuth).Get("/{id}", loanHandler.HandleGet)

			r.With(requireAdmin).Get("/", loanHandler.HandleList)
			r.With(requireAdmin).Post("/admin", loanHandler.HandleAdminBorrow)
			r.With(requireAdmin).Post("/return", loanHandler.HandleReturn)
			r.With(requireAdmin).Post("/internal-use", loanHandler.HandleInternalUse)
			r.With(requireAdmin).Post("/{id}/nudge", loanHandler.HandleNudge)
		})

		r.With(requireAuth).Get("/notifications/user/{userId}", notifyHandler.HandleListUser)
		r.With(requireAdmin).Get("/reports/loans", reportHandler.HandleLoanReport)
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
