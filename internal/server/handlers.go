// File: internal/server/handlers.go
package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/scrape"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type scrapeResponse struct {
	RunID     string                       `json:"runId"`
	Platform  string                       `json:"platform"`
	RailFound bool                         `json:"railFound"`
	Items     schemas.ContinueWatchingData `json:"items"`
	Duration  string                       `json:"duration"`
}

type batchResponse struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures,omitempty"`
	Duration  string            `json:"duration"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScrape runs one platform end to end and persists the result before
// responding, so a crashed client never loses a completed scrape.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	platform, ok := s.platformFromRequest(w, r)
	if !ok {
		return
	}

	if !s.scrapeMu.TryLock() {
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "a scrape is already running"})
		return
	}
	defer s.scrapeMu.Unlock()

	adapter, err := s.resolver.Resolve(platform)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.runner.Run(r.Context(), adapter)
	if err != nil {
		s.logger.Error("Triggered scrape failed.",
			zap.String("platform", platform.String()),
			zap.Error(err),
		)
		s.writeJSON(w, scrapeStatus(err), errorResponse{Error: err.Error()})
		return
	}

	if err := s.resume.SaveResumeData(r.Context(), platform, result.Data); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, scrapeResponse{
		RunID:     result.RunID,
		Platform:  platform.String(),
		RailFound: result.RailFound,
		Items:     result.Data,
		Duration:  result.Duration.String(),
	})
}

// handleBatch runs the full enabled-platform batch synchronously.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !s.scrapeMu.TryLock() {
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: "a scrape is already running"})
		return
	}
	defer s.scrapeMu.Unlock()

	summary, err := s.batch.RunAll(r.Context(), s.enabled)
	resp := batchResponse{
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Duration:  summary.Duration.String(),
	}
	if len(summary.Failures) > 0 {
		resp.Failures = make(map[string]string, len(summary.Failures))
		for _, f := range summary.Failures {
			resp.Failures[f.Platform.String()] = f.Err.Error()
		}
	}

	var batchErr *scrape.BatchError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, resp)
	case errors.As(err, &batchErr):
		// Partial completion still reports the summary.
		s.writeJSON(w, http.StatusMultiStatus, resp)
	default:
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

var loginFormTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html>
<head><title>couchwatch · {{.Platform}} credentials</title></head>
<body>
  <h1>Store credentials for {{.Platform}}</h1>
  <form method="post" action="/{{.Platform}}/login">
    <label>Email <input type="email" name="email" required></label><br>
    <label>Password <input type="password" name="password" required></label><br>
    <button type="submit">Save</button>
  </form>
</body>
</html>`))

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	platform, ok := s.platformFromRequest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginFormTmpl.Execute(w, map[string]string{"Platform": platform.String()}); err != nil {
		s.logger.Error("Failed to render login form.", zap.Error(err))
	}
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	platform, ok := s.platformFromRequest(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed form body"})
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	if err := s.creds.SaveCredentials(r.Context(), platform, email, password); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "saved",
		"platform": platform.String(),
	})
}

func (s *Server) platformFromRequest(w http.ResponseWriter, r *http.Request) (schemas.Platform, bool) {
	name := mux.Vars(r)["platform"]
	platform, err := schemas.ParsePlatform(name)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown platform %q", name)})
		return "", false
	}
	return platform, true
}

// scrapeStatus maps pipeline errors onto HTTP statuses.
func scrapeStatus(err error) int {
	var authErr *schemas.AuthenticationError
	switch {
	case errors.Is(err, schemas.ErrCredentialsMissing):
		return http.StatusPreconditionFailed
	case errors.As(err, &authErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response.", zap.Error(err))
	}
}
