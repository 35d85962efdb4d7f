package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"event-invitations/internal/aggregate"
	"event-invitations/internal/checkin"
	"event-invitations/internal/config"
	"event-invitations/internal/event"
	"event-invitations/internal/handler"
	"event-invitations/internal/logging"
	"event-invitations/internal/registry"
	"event-invitations/internal/rsvp"
	"event-invitations/internal/session"
	"event-invitations/internal/storage"
	"event-invitations/internal/whatsapp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := logging.New("info", "json", os.Stderr)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Goodbye")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := storage.NewStorage(ctx, cfg.DatabaseDSN(), logging.Component(log, "storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	events := event.NewService(store, loc, log)
	machine := rsvp.NewMachine(store, log)
	svc := handler.Services{
		Sessions: session.NewManager(store, session.Config{
			Secret: []byte(cfg.SessionSecret),
			TTL:    cfg.SessionTTL,
		}, log),
		Events:   events,
		Registry: registry.NewRegistry(store, log),
		RSVP:     machine,
		Ledger:   checkin.NewLedger(store, log),
		Passes: checkin.NewPasses(checkin.PassConfig{
			Secret:        []byte(cfg.CheckInPassSecret),
			Grace:         cfg.CheckInPassGrace,
			RequireSigned: cfg.CheckInRequireSignedPass,
		}),
		Counts: aggregate.NewAggregator(store),
		Ping:   store.Ping,
	}

	if cfg.WhatsAppEnabled {
		wa, err := whatsapp.NewService(ctx, whatsapp.Config{DataDir: cfg.WhatsAppDataDir}, log)
		if err != nil {
			return err
		}
		replies := handler.NewRSVPHandler(wa, store, machine, loc, log)
		wa.SetMessageHandler(replies.HandleMessage)

		log.Info().Msg("Connecting to WhatsApp")
		if err := wa.Connect(ctx); err != nil {
			return err
		}
		defer wa.Disconnect()
		svc.Inviter = replies
	}

	go events.RunCompletionSweeper(ctx, cfg.CompletionSweepInterval, cfg.CompletionAfter)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewServer(svc, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
