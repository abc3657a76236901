// Command contentstats-web serves the report bundles under OUTPUT_DIR over
// HTTP so runs can be browsed, downloaded and compared.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/koustreak/contentstats/internal/config"
	"github.com/koustreak/contentstats/internal/logger"
	"github.com/koustreak/contentstats/internal/server"
)

func main() {
	set := pflag.NewFlagSet("contentstats-web", pflag.ContinueOnError)
	cfgPath := set.StringP("config", "c", "", "Optional YAML configuration file.")
	envFile := set.String("env-file", ".env", "Environment file loaded before reading configuration (ignored if missing).")
	addr := set.String("addr", "", "Listen address (overrides WEB_ADDR).")
	if err := set.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: reading %s: %v\n", *envFile, err)
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Web.Addr = *addr
	}

	log := logger.New(cfg.Logger())
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.ErrorWith("server stopped", err, nil)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           server.New(cfg.Output.Dir, log.Component("http")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoWith("listening", logger.Fields{"addr": cfg.Web.Addr, "root": cfg.Output.Dir})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
