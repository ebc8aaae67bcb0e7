package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/solatis/shelfkeeper/internal/core/api"
	"github.com/solatis/shelfkeeper/internal/core/auth"
	"github.com/solatis/shelfkeeper/internal/core/config"
	"github.com/solatis/shelfkeeper/internal/core/server"
	"github.com/solatis/shelfkeeper/internal/core/shelves"
	"github.com/solatis/shelfkeeper/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "listen host")
	serveCmd.Flags().Int("port", 0, "listen port")
	serveCmd.Flags().Bool("migrate", true, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cmd.Flags().Changed("host") {
		rt.cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		rt.cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set SK_HMAC_SECRET environment variable)")
	}

	migrate, _ := cmd.Flags().GetBool("migrate")
	conn, store, err := rt.openStore(cmd, migrate)
	if err != nil {
		return err
	}
	defer conn.Close()

	authenticator := auth.NewAuthenticator(secrets, store.Queries(), rt.logger)
	engine := rules.NewEngine(rt.logger)
	svc := shelves.NewService(store, engine, rt.cfg.Shelves, rt.logger)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Shelves:        svc,
		Auth:           authenticator.Middleware(),
		DB:             conn,
		Logger:         rt.logger,
		RequestTimeout: rt.cfg.Server.RequestTimeout,
		Version:        Version,
	})

	httpServer, err := server.NewHTTPServer(rt.cfg.Server, router)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := httpServer.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.logger.Info("starting shelfkeeper", "version", Version, "addr", httpServer.Addr())
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		rt.logger.Info("shutting down gracefully")
		return httpServer.Shutdown(context.Background())
	}
}
