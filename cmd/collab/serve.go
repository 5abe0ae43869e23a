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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"collabhub/internal/app"
	"collabhub/internal/realtime"
	"collabhub/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath, seedHub string
	var devLogin bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the realtime relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("COLLABHUB_JWT_SECRET is required for bearer auth")
			}
			ws, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer ws.Close()
			cfg := ws.Config
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			if !cmd.Flags().Changed("dev-login") {
				devLogin = cfg.Auth.DevLogin
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if seedHub != "" {
				h, created, err := ws.EnsureHub(ctx, seedHub, "", actorID(cfg))
				if err != nil {
					return err
				}
				if created {
					logger.Info("seeded hub", zap.String("hub_id", h.ID), zap.String("owner", h.OwnerID))
				}
			}

			bus, err := realtime.Open(cfg.Realtime)
			if err != nil {
				return err
			}
			defer bus.Close()

			handler, err := server.New(server.Config{
				Engine:   ws.Engine,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:              secret,
					AllowLegacyActorHeader: cfg.Server.AllowLegacyActorHeader,
					EnableDevLogin:         devLogin,
					Logger:                 logger.Named("auth"),
				},
			})
			if err != nil {
				return err
			}
			relay := server.NewRelay(ws.Engine.Repo, bus, server.RelayConfig{
				Interval: cfg.Realtime.RelayInterval,
				Events:   cfg.Realtime.RelayEvents,
				Logger:   logger.Named("relay"),
			})

			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return relay.Run(gctx) })
			g.Go(func() error {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(sctx)
			})
			logger.Info("serving collaboration API",
				zap.String("url", "http://"+addr+basePath),
				zap.String("openapi", basePath+"/openapi.json"),
				zap.String("realtime", driverName(cfg.Realtime.Driver)),
			)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable POST /auth/dev/login (defaults to auth.dev_login)")
	cmd.Flags().StringVar(&seedHub, "seed-hub", "", "create this hub on start if missing")
	return cmd
}

func driverName(d string) string {
	if d == "" {
		return "memory"
	}
	return d
}
