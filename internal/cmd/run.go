package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/userdesk/userdesk/internal/api"
	"github.com/userdesk/userdesk/internal/config"
)

// StartService runs the web console until SIGINT or SIGTERM.
func StartService(cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(cfg, newAuthenticator(cfg))
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Errorf("console stopped: %v", err)
		}
		return
	case <-ctx.Done():
	}

	log.Info("shutting down console")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Errorf("console shutdown: %v", err)
	}
}
