package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/RRaffay/Finance-Data-Agent/internal/agent"
	"github.com/RRaffay/Finance-Data-Agent/internal/example"
	"github.com/RRaffay/Finance-Data-Agent/internal/models"
	"github.com/RRaffay/Finance-Data-Agent/internal/sessions"
	"github.com/RRaffay/Finance-Data-Agent/internal/tree"
	"github.com/RRaffay/Finance-Data-Agent/internal/upload"
)

const multipartMemory = 32 << 20

// AnalysisHandler serves the upload, follow-up and example routes.
type AnalysisHandler struct {
	uploads      *upload.Store
	builder      *tree.Builder
	agent        *agent.Service
	examples     *example.Cache
	fixture      *tree.Overview
	fileAnalysis bool
	maxUpload    int64
	logger       *slog.Logger
}

// AnalysisOptions are the tree-building switches for uploads.
type AnalysisOptions struct {
	// FileAnalysis annotates every file with an LLM summary.
	FileAnalysis bool
	// Fixture, when set, replaces the archive walk with a prepared overview.
	Fixture *tree.Overview
	// MaxUploadBytes caps the request body of /upload.
	MaxUploadBytes int64
}

// NewAnalysisHandler creates the handler.
func NewAnalysisHandler(
	uploads *upload.Store,
	builder *tree.Builder,
	svc *agent.Service,
	examples *example.Cache,
	opts AnalysisOptions,
	logger *slog.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		uploads:      uploads,
		builder:      builder,
		agent:        svc,
		examples:     examples,
		fixture:      opts.Fixture,
		fileAnalysis: opts.FileAnalysis,
		maxUpload:    opts.MaxUploadBytes,
		logger:       logger,
	}
}

// Upload handles POST /upload
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		// A file input submitted with nothing chosen arrives as a plain value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			writeError(w, http.StatusBadRequest, "No selected file")
			return
		}
		writeError(w, http.StatusBadRequest, "No file part")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer file.Close()

	extracted, err := h.uploads.Save(header.Filename, file)
	if err != nil {
		if isArchiveError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "save upload: "+err.Error())
		return
	}
	objective := r.FormValue("objective")

	ctx := r.Context()
	overview, err := h.overview(r, extracted.Root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "build tree: "+err.Error())
		return
	}

	sess, err := h.agent.NewSession(ctx, objective)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result, err := h.agent.Analyze(ctx, sess, overview.Text, objective)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec := &models.ExampleRecord{
		Analysis:      result.Analysis,
		Tree:          overview.JSON,
		Objective:     objective,
		SystemMessage: result.SystemMessage,
	}
	if err := h.examples.Save(rec, sess.ID); err != nil {
		h.logger.Warn("failed to record example", "session", sess.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, models.UploadResponse{
		SessionID: sess.ID,
		Analysis:  result.Analysis,
		Tree:      overview.JSON,
	})
}

func (h *AnalysisHandler) overview(r *http.Request, root string) (tree.Overview, error) {
	if h.fixture != nil {
		h.logger.Info("using tree fixture", "root", root)
		return *h.fixture, nil
	}
	t, err := h.builder.Build(r.Context(), root, h.fileAnalysis)
	if err != nil {
		return tree.Overview{}, err
	}
	h.logger.Info("tree built", "root", root, "files", len(t.Files()))
	return t.Overview()
}

// Ask handles POST /ask
func (h *AnalysisHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	id, reply, err := h.agent.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		if errors.Is(err, sessions.ErrNotInitialized) || errors.Is(err, sessions.ErrUnknownSession) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.AskResponse{SessionID: id, Response: reply})
}

// Example handles GET /example
func (h *AnalysisHandler) Example(w http.ResponseWriter, r *http.Request) {
	rec, err := h.examples.Load()
	if errors.Is(err, example.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load example: "+err.Error())
		return
	}

	ctx := r.Context()
	sess, err := h.agent.NewSession(ctx, rec.Objective)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := h.agent.Warm(ctx, sess, rec.SystemMessage); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.ExampleResponse{
		SessionID: sess.ID,
		Analysis:  rec.Analysis,
		Tree:      rec.Tree,
		Objective: rec.Objective,
	})
}

func isArchiveError(err error) bool {
	return errors.Is(err, upload.ErrEmptyFilename) ||
		errors.Is(err, upload.ErrNotZip) ||
		errors.Is(err, upload.ErrUnsafePath) ||
		errors.Is(err, upload.ErrTooLarge)
}
