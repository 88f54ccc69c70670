package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/lastword/internal/allowlist"
	"github.com/darmiel/lastword/internal/api"
	"github.com/darmiel/lastword/internal/audit"
	"github.com/darmiel/lastword/internal/content"
	"github.com/darmiel/lastword/internal/dispatch"
	"github.com/darmiel/lastword/internal/logging"
	"github.com/darmiel/lastword/internal/messages"
	"github.com/darmiel/lastword/internal/service"
	"github.com/darmiel/lastword/internal/session"
	"github.com/darmiel/lastword/internal/store"
	_ "github.com/darmiel/lastword/internal/store/sqlite"
	"github.com/darmiel/lastword/internal/tasks"
	"github.com/darmiel/lastword/internal/workflow"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lastword server",
	Long: `Runs the HTTP API and the resume task that wakes countdowns when they are due.
Instances are persisted in the configured store, so a restarted server resumes where it left off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		signer, err := f.Signer(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info().Str("driver", cfg.Store.Driver).Msg("Opening instance store...")
		instances, err := store.Open(ctx, store.DriverConfigFrom(cfg.Store))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer func() {
			if err := instances.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close store")
			}
		}()

		dispatcher, err := dispatch.Build(cfg.Dispatcher, signer)
		if err != nil {
			return fmt.Errorf("building dispatcher: %w", err)
		}
		source, err := content.Build(cfg.Content)
		if err != nil {
			return fmt.Errorf("building content source: %w", err)
		}
		auditor, err := audit.Build(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			_ = auditor.Close()
		}()
		allow, err := allowlist.New(cfg.AllowList.Entries, cfg.AllowList.Expr)
		if err != nil {
			return fmt.Errorf("building allow-list: %w", err)
		}
		sessions, err := session.NewManager(signer)
		if err != nil {
			return err
		}

		notify, err := workflow.PolicyFromConfig(cfg.Workflow.Notify, workflow.ExhaustionFail)
		if err != nil {
			return err
		}
		release, err := workflow.PolicyFromConfig(cfg.Workflow.Release, workflow.ExhaustionContinue)
		if err != nil {
			return err
		}

		composer := messages.NewComposer(cfg.Sender, cfg.Owner, cfg.CallbackURL)
		engine := workflow.NewEngine(instances, dispatcher, source, composer, auditor, workflow.Options{
			Wait:         cfg.WaitDuration(),
			Notify:       notify,
			Release:      release,
			LeaseTTL:     cfg.Workflow.LeaseTTL,
			DedupeActive: cfg.Workflow.DedupeActive,
		})

		tokens := service.NewTokenService(signer, tokenDefaults(cfg), auditor)
		invitations := service.NewInvitationService(signer, dispatcher, composer, auditor,
			cfg.Invitations.Concurrency, cfg.Invitations.Stagger)
		triggers := service.NewTriggerService(cfg.Owner, tokens, invitations, engine, allow, auditor)

		taskManager := tasks.NewManager()
		taskManager.Register(tasks.TaskDefinition{
			Name:     workflow.ResumeTaskName,
			Interval: cfg.Workflow.PollInterval,
			Handler: func(ctx context.Context, logger logging.InternalLogger) error {
				return engine.ResumeDue(ctx, logger)
			},
		})
		// run the first step right away instead of waiting for the next tick
		engine.OnStart(func() {
			if err := taskManager.Trigger(workflow.ResumeTaskName); err != nil {
				log.Warn().Err(err).Msg("failed to trigger resume task")
			}
		})
		taskManager.Start(ctx)

		srv := api.NewServer(api.Services{
			Owner:       cfg.Owner,
			Tokens:      tokens,
			Invitations: invitations,
			Triggers:    triggers,
			Engine:      engine,
			Tasks:       taskManager,
			Sessions:    sessions,
			Dispatcher:  dispatcher,
			Composer:    composer,
			Auditor:     auditor,
		})

		server := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("owner", cfg.Owner).
				Str("dispatcher", dispatcher.Name()).
				Dur("wait", cfg.WaitDuration()).
				Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			stop()
			taskManager.Wait()
			return fmt.Errorf("server crashed: %w", err)
		}
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		taskManager.Wait()

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "address to listen on")
}
