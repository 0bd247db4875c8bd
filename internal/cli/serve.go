package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lazypower/nudge/internal/server"
	"github.com/lazypower/nudge/internal/store"
)

var serveFixture string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and evaluation scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFixture, "fixture", "", "Seed signals from a YAML fixture")
}

func runServe(cmd *cobra.Command, args []string) error {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	fixture, err := loadFixture(serveFixture)
	if err != nil {
		return err
	}
	a, err := wireFixture(cfg, db, db, time.Now, fixture)
	if err != nil {
		return err
	}
	if fixture != nil {
		log.Info().Str("fixture", serveFixture).Int("tasks", len(fixture.Tasks)).Int("events", len(fixture.Events)).Msg("signals seeded")
	}

	a.host.Start()
	defer func() {
		a.host.Stop()
		if n := a.cooldowns.Flush(); n > 0 {
			log.Warn().Int("pending", n).Msg("cooldown writes still pending at shutdown")
		}
	}()

	srv := server.New(server.Deps{
		DB:        db,
		Host:      a.host,
		Signals:   a.state,
		Visits:    a.visits,
		Cooldowns: a.cooldowns,
	}, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	ossignal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("db", dbPath).Str("session", a.host.SessionID).Strs("surfaces", a.host.Names()).Msg("nudge serving")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
