// Command viewer serves archived contest matches, standings and a one-round
// simulator as JSON for a browser front end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/hypersonic/logging"
	"github.com/brensch/hypersonic/store"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", "127.0.0.1:8080", "HTTP listen address")
	dataDirs := fs.String("data-dirs", "data/contests", "Comma-separated directories holding match parquet archives")
	dbPath := fs.String("db", "data/contests/index.sqlite", "SQLite results index (empty disables standings)")
	staticDir := fs.String("static-dir", "", "Optional directory to serve as SPA static")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(os.Stderr, level, true)

	roots := parseDataRoots(*dataDirs)
	log.Info("viewer data roots", "roots", roots)

	var index *store.Index
	if *dbPath != "" {
		index, err = store.OpenIndex(*dbPath)
		if err != nil {
			log.Error("open index", "error", err)
			os.Exit(1)
		}
		defer index.Close()
	}

	srv := NewServer(roots, index, log)
	defer srv.Close()

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	if strings.TrimSpace(*staticDir) != "" {
		mux.Handle("/", http.FileServer(http.Dir(*staticDir)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Addr: *listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("viewer listening", "addr", *listen)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}

func parseDataRoots(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
