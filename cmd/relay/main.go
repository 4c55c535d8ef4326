package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/lanbeam/relay/config"
	"github.com/lanbeam/relay/internal/discovery"
	"github.com/lanbeam/relay/internal/handlers"
	"github.com/lanbeam/relay/internal/mirror"
	"github.com/lanbeam/relay/internal/monitor"
	"github.com/lanbeam/relay/internal/registry"
	"github.com/lanbeam/relay/internal/rendezvous"
	"github.com/lanbeam/relay/internal/router"
	"github.com/lanbeam/relay/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lanbeam-relay",
		Short: "Signaling and room-coordination relay for LAN file transfer",
		Long: `lanbeam-relay tracks which devices are online, brokers WebRTC
session-establishment messages between them, and manages the lifecycle of
multi-party broadcast rooms. File bytes never pass through the relay.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func run(cfg *config.Config) error {
	mir, err := mirror.Connect(cfg.Redis)
	if err != nil {
		return err
	}
	defer mir.Close()
	if mir.Enabled() {
		log.Printf("redis mirror enabled (%s)", cfg.Redis.Addr)
	}

	reg := registry.New()
	st := store.New()
	rt := router.New(reg, st, mir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go monitor.New(reg, st, rt, cfg.Liveness).Run(ctx)

	if cfg.Rendezvous.Enabled() {
		rdv, err := rendezvous.Start(cfg.Rendezvous)
		if err != nil {
			return err
		}
		defer rdv.Close()
	}

	if cfg.Discovery.Enabled {
		if portNum, err := strconv.Atoi(cfg.Port); err == nil {
			adv, err := discovery.Advertise(cfg.Discovery.Instance, portNum, []string{
				"ws=/ws",
				"rendezvous=" + strconv.Itoa(cfg.Rendezvous.Port),
			})
			if err != nil {
				log.Printf("discovery unavailable: %v", err)
			} else {
				defer adv.Shutdown()
			}
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewEngine(cfg, reg, st, rt),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("relay listening on :%s", cfg.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
