package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/api"
	"github.com/jmcleod/lockbox/internal/logger"
)

var (
	listenAddr string
	tlsCert    string
	tlsKey     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the vault over a local REST API",
	Long: `Serve the vault over a local REST API under /api/v1. The vault starts
locked; POST /api/v1/vault/unlock returns a bearer token for the session.
Interactive documentation is served at /api/v1/docs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "Address to listen on (default from config, 127.0.0.1:7420)")
	serveCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Address = listenAddr
	}
	log := logger.NewLogger("server", cfg.Log.Level)

	store, closeStore, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("opening %s storage: %w", cfg.Vault.Backend, err)
	}
	defer closeStore()

	a := api.New(newVault(cfg, store, log), api.WithLogger(log),
		api.WithRateLimit(cfg.Server.RequestRate, cfg.Server.RequestBurst),
		api.WithAlertFunc(func(ev api.AlertEvent) {
			log.Warn().Str("alert", string(ev.Type)).Int("count", ev.Count).
				Int("threshold", ev.Threshold).Msg(ev.Message)
		}),
	)
	defer a.Close()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Mount("/api/v1", a.Router())

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	useTLS := tlsCert != "" && tlsKey != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	out := cmd.OutOrStdout()
	printBanner(out)
	fmt.Fprintf(out, "Serving vault %q on %s (%s backend)...\n", cfg.Vault.ID, cfg.Server.Address, cfg.Vault.Backend)
	if !useTLS && !isLoopback(cfg.Server.Address) {
		printWarning(out, "serving plain HTTP on a non-loopback address")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}

// requestLogger logs one line per request. Only the route pattern is
// logged, never query strings or bodies.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
