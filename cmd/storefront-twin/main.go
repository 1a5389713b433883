// storefront-twin serves an in-memory copy of the commerce backend's HTTP
// surface for local runs of the storefront client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dwikikusuma/shoping-storefront/internal/backendtwin"
	"github.com/dwikikusuma/shoping-storefront/pkg/config"
	"github.com/dwikikusuma/shoping-storefront/pkg/logger"
	"github.com/dwikikusuma/shoping-storefront/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service:   "storefront-twin",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: true,
	})

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	twin := backendtwin.New(backendtwin.Options{Logger: log, RotateRefresh: true})
	seed(twin)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Mount("/", twin.Handler())

	addr := fmt.Sprintf(":%d", cfg.TwinPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("backend twin starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	wg.Wait()
	log.Info("bye")
}

func seed(t *backendtwin.Twin) {
	t.AddUser("demo", "demo123")

	t.AddProduct("Electric Kettle", "Kitchenware", 2500, 12)
	t.AddProduct("Cast Iron Pan", "Kitchenware", 3200, 5)
	t.AddProduct("USB-C Cable", "Accessories", 450, 40)
	t.AddProduct("Phone Stand", "Accessories", 800, 0)
	t.AddProduct("Desk Lamp", "Home", 1800, 9)
}
