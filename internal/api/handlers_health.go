package api

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/RRaffay/Finance-Data-Agent/internal/models"
	"github.com/RRaffay/Finance-Data-Agent/internal/store"
)

// InterpreterChecker reports whether the code sandbox can start.
type InterpreterChecker interface {
	Available() error
}

type HealthHandler struct {
	db      *store.DB
	sandbox InterpreterChecker
	dirs    []string
}

func NewHealthHandler(db *store.DB, sandbox InterpreterChecker, dirs ...string) *HealthHandler {
	return &HealthHandler{db: db, sandbox: sandbox, dirs: dirs}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status: "ok",
	}

	// Check checkpoint DB
	if err := h.db.PingContext(r.Context()); err != nil {
		resp.Checkpoints = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else if threads, err := h.db.ThreadCount(); err != nil {
		resp.Checkpoints = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Checkpoints = models.ServiceCheck{Status: "ok", Message: fmt.Sprintf("%d threads", threads)}
	}

	// Check sandbox interpreter
	if err := h.sandbox.Available(); err != nil {
		resp.Sandbox = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.Sandbox = models.ServiceCheck{Status: "ok"}
	}

	// Check upload, image and example directories
	var bad []string
	for _, dir := range h.dirs {
		if err := writable(dir); err != nil {
			bad = append(bad, err.Error())
		}
	}
	if len(bad) > 0 {
		resp.Directories = models.ServiceCheck{Status: "error", Message: strings.Join(bad, "; ")}
		resp.Status = "degraded"
	} else {
		resp.Directories = models.ServiceCheck{Status: "ok"}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func writable(dir string) error {
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return fmt.Errorf("%s not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
