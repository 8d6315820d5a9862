package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"gissues/internal/bootstrap"
	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve read-through HTTP endpoints for repositories, issues and comments",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr, _ := cmd.Flags().GetString("addr")
		if strings.TrimSpace(addr) == "" {
			addr = app.Config.HTTP.Addr
		}
		return serveHTTP(ctx, addr, newMirrorHTTPHandler(ctx, app.Mirror))
	}),
}

type mirrorReader interface {
	GetOrSyncRepository(ctx context.Context, owner string, name string) (ports.Repository, error)
	GetOrSyncIssue(ctx context.Context, owner string, name string, numberRaw string) (ports.Issue, error)
	GetOrSyncComment(ctx context.Context, owner string, name string, issueNumberRaw string, commentIDRaw string) (ports.Comment, error)
}

type mirrorHTTPHandler struct {
	svc    mirrorReader
	logCtx context.Context
}

type mirrorErrorResponse struct {
	Error   string          `json:"error"`
	Code    int             `json:"code,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// newMirrorHTTPHandler routes the read-through endpoints; baseCtx carries the logger
// used for request logs.
func newMirrorHTTPHandler(baseCtx context.Context, svc mirrorReader) http.Handler {
	h := &mirrorHTTPHandler{
		svc:    svc,
		logCtx: logging.WithComponent(baseCtx, "cmd.serve"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeMirrorJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/repos/{owner}/{repo}", func(r chi.Router) {
		r.Get("/", h.getRepository)
		r.Get("/issues/{number}", h.getIssue)
		r.Get("/issues/{number}/comments/{comment_id}", h.getComment)
	})
	return r
}

func (h *mirrorHTTPHandler) getRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := h.svc.GetOrSyncRepository(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "repo"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMirrorJSON(w, http.StatusOK, repo)
}

func (h *mirrorHTTPHandler) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := h.svc.GetOrSyncIssue(
		r.Context(),
		chi.URLParam(r, "owner"),
		chi.URLParam(r, "repo"),
		chi.URLParam(r, "number"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMirrorJSON(w, http.StatusOK, issue)
}

func (h *mirrorHTTPHandler) getComment(w http.ResponseWriter, r *http.Request) {
	comment, err := h.svc.GetOrSyncComment(
		r.Context(),
		chi.URLParam(r, "owner"),
		chi.URLParam(r, "repo"),
		chi.URLParam(r, "number"),
		chi.URLParam(r, "comment_id"),
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMirrorJSON(w, http.StatusOK, comment)
}

func (h *mirrorHTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mirrorErrorBody(err)
	if status >= http.StatusInternalServerError {
		logging.Error(h.logCtx, "read-through request failed", slog.String("path", r.URL.Path), errs.Attr(err))
	}
	writeMirrorJSON(w, status, body)
}

func mirrorErrorBody(err error) (int, mirrorErrorResponse) {
	switch {
	case errors.Is(err, domainmirror.ErrUnavailable):
		return http.StatusServiceUnavailable, mirrorErrorResponse{Error: "service_unavailable"}
	case errors.Is(err, domainmirror.ErrNotFound),
		errors.Is(err, ports.ErrRepositoryNotFound),
		errors.Is(err, ports.ErrIssueNotFound),
		errors.Is(err, ports.ErrCommentNotFound):
		return http.StatusNotFound, mirrorErrorResponse{Error: "not_found"}
	case errors.Is(err, domainmirror.ErrInvalidRequest):
		body := mirrorErrorResponse{Error: "invalid_request", Code: domainmirror.InvalidRequestCode}
		if remote, ok := domainmirror.AsRemoteError(err); ok {
			body.Payload = remote.Payload
			if remote.Message != "" {
				body.Error = remote.Message
			}
		}
		return http.StatusBadRequest, body
	case errors.Is(err, domainmirror.ErrValidation):
		return http.StatusBadRequest, mirrorErrorResponse{Error: "invalid"}
	default:
		return http.StatusInternalServerError, mirrorErrorResponse{Error: "internal_error"}
	}
}

func (h *mirrorHTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Info(h.logCtx, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeMirrorJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// serveHTTP listens on addr until ctx is done, then shuts the server down gracefully.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logging.Info(ctx, "http server started", slog.String("addr", addr))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve http")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	logging.Info(ctx, "http server stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr)")
}
