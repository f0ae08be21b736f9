package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"depot/internal/depot"
)

const (
	// maxUploadSize bounds one multipart upload.
	maxUploadSize = 512 << 20
	// maxMemory is the part of a multipart form held in memory.
	maxMemory = 32 << 20
	// maxJSONBody bounds small JSON request bodies.
	maxJSONBody = 1 << 20
)

// Handler serves the depot HTTP API.
type Handler struct {
	svc    *depot.Service
	logger *slog.Logger
}

// NewHandler creates a handler over svc.
func NewHandler(svc *depot.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.HandleFunc("GET /repos/{owner}/{repo}/archive", h.HandleArchive)
	mux.HandleFunc("POST /repos/{owner}/{repo}/files", h.HandleUpload)
	mux.HandleFunc("GET /repos/{owner}/{repo}/files", h.HandleListStaged)
	mux.HandleFunc("POST /repos/{owner}/{repo}/commits", h.HandleCommit)
	mux.HandleFunc("GET /repos/{owner}/{repo}/commits", h.HandleListCommits)
	mux.HandleFunc("GET /repos/{owner}/{repo}/commits/{commit}", h.HandleGetCommit)
	mux.HandleFunc("POST /repos/{owner}/{repo}/push", h.HandlePush)
	mux.HandleFunc("POST /repos/{owner}/{repo}/pull", h.HandlePull)
	mux.HandleFunc("POST /repos/{owner}/{repo}/revert/{commit}", h.HandleRevert)
	return mux
}

type commitJSON struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Files     []string  `json:"files"`
}

func toCommitJSON(c *depot.Commit) commitJSON {
	return commitJSON{ID: c.ID, Message: c.Message, Timestamp: c.Timestamp, Files: c.Files}
}

type syncJSON struct {
	Commits []string `json:"commits"`
	Objects int      `json:"objects"`
	Failed  []string `json:"failed,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type errorJSON struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleArchive streams a zip of the latest remote commit, or of the commit
// named by the "commit" query parameter. The archive is spooled to a temp
// file first so a failure can still be reported with a proper status.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	commitID := r.URL.Query().Get("commit")

	spool, err := os.CreateTemp("", "depot-download-*.zip")
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	var res *depot.ArchiveResult
	if commitID == "" {
		res, err = h.svc.DownloadLatest(r.Context(), owner, repo, spool)
	} else {
		res, err = h.svc.DownloadCommit(r.Context(), owner, repo, commitID, spool)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	size, err := spool.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = spool.Seek(0, io.SeekStart)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", repo+"-"+res.CommitID+".zip"))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("X-Depot-Commit", res.CommitID)
	if len(res.Skipped) > 0 {
		w.Header().Set("X-Depot-Skipped", strconv.Itoa(len(res.Skipped)))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, spool); err != nil {
		h.logger.Warn("archive response interrupted", "repo", owner+"/"+repo, "error", err)
	}
}

// HandleUpload stages the "file" part of a multipart form. The staged name
// is the "name" form value, or the uploaded file name when that is empty.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid multipart form: " + err.Error(), Kind: depot.InvalidArgument.String()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "missing file part", Kind: depot.InvalidArgument.String()})
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = filepath.Base(header.Filename)
	}

	upload, err := os.CreateTemp("", "depot-upload-*")
	if err != nil {
		h.writeError(w, err)
		return
	}
	// StageFile consumes the source; this only cleans up after failures.
	defer os.Remove(upload.Name())

	_, err = io.Copy(upload, file)
	if cerr := upload.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.svc.StageFile(r.Context(), owner, repo, upload.Name(), name); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

// HandleListStaged lists the staged file names.
func (h *Handler) HandleListStaged(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.ListStaged(r.Context(), r.PathValue("owner"), r.PathValue("repo"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"files": names})
}

// HandleCommit commits the staging area. The body is {"message": "..."};
// an empty body commits with an empty message.
func (h *Handler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "invalid JSON body: " + err.Error(), Kind: depot.InvalidArgument.String()})
		return
	}

	c, err := h.svc.Commit(r.Context(), r.PathValue("owner"), r.PathValue("repo"), body.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommitJSON(c))
}

// HandleListCommits lists local commits, newest first.
func (h *Handler) HandleListCommits(w http.ResponseWriter, r *http.Request) {
	commits, err := h.svc.ListCommits(r.Context(), r.PathValue("owner"), r.PathValue("repo"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]commitJSON, 0, len(commits))
	for _, c := range commits {
		out = append(out, toCommitJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetCommit returns one local commit.
func (h *Handler) HandleGetCommit(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCommit(r.Context(), r.PathValue("owner"), r.PathValue("repo"), r.PathValue("commit"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommitJSON(c))
}

// HandlePush pushes every local commit.
func (h *Handler) HandlePush(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Push(r.Context(), r.PathValue("owner"), r.PathValue("repo"))
	h.writeSync(w, res, err)
}

// HandlePull pulls every remote commit.
func (h *Handler) HandlePull(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Pull(r.Context(), r.PathValue("owner"), r.PathValue("repo"))
	h.writeSync(w, res, err)
}

// HandleRevert restores the files of a commit.
func (h *Handler) HandleRevert(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Revert(r.Context(), r.PathValue("owner"), r.PathValue("repo"), r.PathValue("commit"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commit": res.CommitID, "files": res.Files, "skipped": res.Skipped})
}

// writeSync reports a push or pull. Transfers that moved some objects but
// not all still answer with the result body.
func (h *Handler) writeSync(w http.ResponseWriter, res *depot.SyncResult, err error) {
	if err != nil && (res == nil || depot.KindOf(err) != depot.PartialFailure) {
		h.writeError(w, err)
		return
	}

	out := syncJSON{Commits: res.Commits, Objects: len(res.Objects), Failed: res.Failed}
	if out.Commits == nil {
		out.Commits = []string{}
	}
	status := http.StatusOK
	if err != nil {
		out.Error = err.Error()
		status = statusFor(err)
	}
	writeJSON(w, status, out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorJSON{Error: err.Error(), Kind: depot.KindOf(err).String()})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch depot.KindOf(err) {
	case depot.InvalidArgument:
		return http.StatusBadRequest
	case depot.NotFound:
		return http.StatusNotFound
	case depot.RemoteError, depot.PartialFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
