package main

import (
	"bytes"
	"io"
	"sync"

	"github.com/figscale/loadgen/internal/config"
	"github.com/figscale/loadgen/internal/dashboard"
)

func dashboardInfo(cfg *config.Config) dashboard.RunInfo {
	return dashboard.RunInfo{
		Target:       cfg.TargetURL,
		Concurrency:  cfg.Concurrency,
		Duration:     cfg.Duration,
		ReadRatio:    cfg.ReadRatio,
		ThinkTimeMin: cfg.ThinkTimeMin,
		ThinkTimeMax: cfg.ThinkTimeMax,
		Rate:         cfg.Rate,
		Seed:         cfg.Seed,
	}
}

// heldWriter buffers writes until Release, then passes them straight through.
type heldWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	out io.Writer
}

func (h *heldWriter) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out != nil {
		return h.out.Write(p)
	}
	return h.buf.Write(p)
}

// Release flushes what was held to w. Later calls only flush new writes, of
// which there are none once w is set.
func (h *heldWriter) Release(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out == nil {
		h.out = w
	}
	_, err := h.buf.WriteTo(h.out)
	return err
}
