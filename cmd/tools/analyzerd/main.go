// analyzerd is the development stand-in for the emotional-analysis
// service: the booth REST API, the websocket push channel and a simulated
// continuous voice analysis, so the booth client can be exercised without
// the real pipeline.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/miguelrl/cabina/client/internal/analysis/emotion"
	"github.com/miguelrl/cabina/client/internal/config"
	"github.com/miguelrl/cabina/client/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var bot server.Bot
	if cfg.Bot.Enabled() {
		arkBot, err := server.NewArkBot(ctx, cfg.Bot)
		if err != nil {
			log.Printf("warning: failed to initialize Ark bot: %v", err)
			log.Println("continuing with scripted intervention responses")
			bot = server.NewScriptedBot(time.Now().UnixNano())
		} else {
			log.Println("Ark intervention bot initialized")
			bot = arkBot
		}
	} else {
		log.Println("Ark credentials not configured, using scripted intervention responses")
		bot = server.NewScriptedBot(time.Now().UnixNano())
	}

	seed := time.Now().UnixNano()
	if cfg.Analyzer.Seed != nil {
		seed = *cfg.Analyzer.Seed
	}

	sessions := server.NewSessions()
	hub := server.NewHub()
	defer hub.CloseAll()

	analyzer := server.NewAnalyzer(sessions, hub, emotion.NewSimulator(seed), cfg.Analyzer.TickInterval)
	go analyzer.Run(ctx)

	router := server.NewRouter(server.NewHandler(sessions, hub, bot))
	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Cabina analyzer listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
