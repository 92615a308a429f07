package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"cookout-auth/internal/config"
	"cookout-auth/internal/domain/support"
	httpiface "cookout-auth/internal/interface/http"
	"cookout-auth/internal/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:           "cookout-auth",
		Short:         "Sign-in bridge from TikTok and Google to identity-platform custom tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE:  runServe,
	})
	root.AddCommand(supportUserCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	for _, w := range cfg.Warnings() {
		logger.Warnf("config: %s", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	h := &httpiface.Handler{UC: d.uc, AppLink: cfg.AppLink, Metrics: d.metrics}
	e := httpiface.NewRouter(h, httpiface.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		RedirectURI:    cfg.TikTok.RedirectURI,
	})

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		logger.Infoj(log.JSON{
			"msg":          "starting server",
			"addr":         addr,
			"redirect_uri": cfg.TikTok.RedirectURI,
			"state":        cfg.State.Backend,
			"directory":    cfg.DirectoryBackend,
		})
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

func supportUserCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "support-user",
		Short: "Create or refresh the disabled support account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(logging.ParseLevel(cfg.LogLevel))
			d, err := buildDeps(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer d.close()

			out, err := support.NewService(d.dir, uuid.NewString).Provision(cmd.Context(), email, name)
			if err != nil {
				return err
			}
			verb := "updated"
			if out.Created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "support user %s: uid=%s\n", verb, out.UID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "support.thecookout@gmail.com", "support account email")
	cmd.Flags().StringVar(&name, "name", "The Cookout Support", "support account display name")
	return cmd
}
