// Command mockapi serves an in-memory copy of the file-sharing API for local
// load-generator runs:
//
//	go run ./scripts/testservers/mockapi --port 8000
//	API_URL=http://localhost:8000/api/v1 go run ./cmd/loadgen -d 30
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/figscale/loadgen/internal/logging"
	"github.com/figscale/loadgen/internal/mockapi"
)

func main() {
	port := pflag.Int("port", 8000, "Listening port")
	mode := pflag.String("mode", "normal", "Behaviour: normal, empty or fail")
	users := pflag.Int("users", 50, "Seeded users")
	orgs := pflag.Int("organizations", 10, "Seeded organizations")
	files := pflag.Int("files", 200, "Seeded files")
	latency := pflag.Duration("latency", 0, "Delay added to every response")
	seed := pflag.Int64("seed", 1, "Dataset seed")
	pflag.Parse()

	logger, err := logging.New("info", "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	m, err := parseMode(*mode)
	if err != nil {
		logger.Fatal("invalid mode", zap.Error(err))
	}

	api := mockapi.New(mockapi.Options{
		Users:         *users,
		Organizations: *orgs,
		Files:         *files,
		Mode:          m,
		Latency:       *latency,
		Seed:          *seed,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("mock API listening",
		zap.String("addr", srv.Addr),
		zap.String("prefix", mockapi.DefaultPrefix),
		zap.String("mode", *mode),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func parseMode(s string) (mockapi.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "":
		return mockapi.ModeNormal, nil
	case "empty":
		return mockapi.ModeEmpty, nil
	case "fail":
		return mockapi.ModeFail, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}
