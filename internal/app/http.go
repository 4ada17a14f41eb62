package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"copilot/api/internal/export"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: log}
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, session Session)

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)

	r.Post("/api/session", s.handleOpenSession)
	r.Put("/api/session/role", s.authed(s.handleSwitchRole))

	r.Route("/api/workspace", func(r chi.Router) {
		r.Get("/", s.authed(s.handleWorkspace))
		r.Post("/lead/ingest", s.authed(s.handleIngestLead))
		r.Post("/proposal/generate", s.authed(s.handleGenerate))
		r.Patch("/proposal", s.authed(s.handleEditField))
		r.Post("/proposal/items/{itemID}/quantity", s.authed(s.handleAdjustQuantity))
		r.Get("/versions", s.authed(s.handleVersions))
		r.Post("/versions/{versionID}/restore", s.authed(s.handleRestore))
		r.Get("/templates", s.authed(s.handleTemplates))
		r.Post("/templates", s.authed(s.handleSaveTemplate))
		r.Post("/templates/{templateID}/apply", s.authed(s.handleApplyTemplate))
		r.Post("/approval", s.authed(s.handleSubmitApproval))
		r.Post("/approval/decision", s.authed(s.handleDecideApproval))
		r.Get("/messages", s.authed(s.handleMessages))
		r.Post("/messages", s.authed(s.handlePostMessage))
		r.Post("/email/compose", s.authed(s.handleComposeEmail))
		r.Put("/email", s.authed(s.handleEditEmail))
		r.Post("/email/send", s.authed(s.handleSendEmail))
		r.Delete("/email", s.authed(s.handleDiscardEmail))
		r.Get("/export", s.authed(s.handleExport))
	})

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"store": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["store"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":       session.Token,
		"workspaceId": session.WorkspaceID,
		"role":        session.Role,
		"roleLabel":   session.Role.Label(),
		"expiresAt":   session.ExpiresAt,
	}
}

func (s *HTTPServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.OpenSession(r.Context(), body.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func (s *HTTPServer) handleSwitchRole(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	next, err := s.service.SwitchRole(r.Context(), session, body.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(next))
}

func (s *HTTPServer) handleWorkspace(w http.ResponseWriter, r *http.Request, session Session) {
	s.respond(w, r)(s.service.Workspace(r.Context(), session))
}

func (s *HTTPServer) handleIngestLead(w http.ResponseWriter, r *http.Request, session Session) {
	s.respond(w, r)(s.service.IngestLead(r.Context(), session))
}

func (s *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request, session Session) {
	s.respond(w, r)(s.service.GenerateDraft(r.Context(), session))
}

func (s *HTTPServer) handleEditField(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r)(s.service.EditField(r.Context(), session, body.Field, body.Value))
}

func (s *HTTPServer) handleAdjustQuantity(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Delta *int `json:"delta"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Delta == nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "delta is required", nil)
		return
	}
	s.respond(w, r)(s.service.AdjustQuantity(r.Context(), session, chi.URLParam(r, "itemID"), *body.Delta))
}

func (s *HTTPServer) handleVersions(w http.ResponseWriter, r *http.Request, session Session) {
	view, err := s.service.Workspace(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": view.Versions})
}

func (s *HTTPServer) handleRestore(w http.ResponseWriter, r *http.Request, session Session) {
	s.respond(w, r)(s.service.RestoreVersion(r.Context(), session, chi.URLParam(r, "versionID")))
}

func (s *HTTPServer) handleTemplates(w http.ResponseWriter, r *http.Request, session Session) {
	view, err := s.service.Workspace(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": view.Templates})
}

func (s *HTTPServer) handleSaveTemplate(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	view, err := s.service.SaveTemplate(r.Context(), session, body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleApplyTemplate(w http.ResponseWriter, r *http.Request, session Session) {
	s.respond(w, r)(s.service.ApplyTemplate(r.Context(), session, chi.URLParam(r, "templateID")))
}

func (s *HTTPServer) handleSubmitApproval(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Note              string `json:"note"`
		RequestedDiscount *int   `json:"requestedDiscount"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r)(s.service.SubmitApproval(r.Context(), session, body.Note, body.RequestedDiscount))
}

func (s *HTTPServer) handleDecideApproval(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	var approve bool
	switch strings.ToLower(strings.TrimSpace(body.Decision)) {
	case "approve", "approved":
		approve = true
	case "reject", "rejected":
		approve = false
	default:
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "decision must be approve or reject", nil)
		return
	}
	s.respond(w, r)(s.service.DecideApproval(r.Context(), session, approve, body.Note))
}

func (s *HTTPServer) handleMessages(w http.ResponseWriter, r *http.Request, session Session) {
	view, err := s.service.Workspace(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": view.Messages})
}

func (s *HTTPServer) handlePostMessage(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r)(s.service.PostMessage(r.Context(), session, body.Text))
}

func (s *HTTPServer) handleComposeEmail(w http.ResponseWriter, r *http.Request, session Session) {
	s.respond(w, r)(s.service.ComposeEmail(r.Context(), session))
}

func (s *HTTPServer) handleEditEmail(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Subject *string `json:"subject"`
		Body    *string `json:"body"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	s.respond(w, r)(s.service.EditEmail(r.Context(), session, body.Subject, body.Body))
}

func (s *HTTPServer) handleSendEmail(w http.ResponseWriter, r *http.Request, session Session) {
	view, receipt, err := s.service.SendEmail(r.Context(), session)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace": view,
		"delivery": map[string]any{
			"simulated": receipt.Simulated,
			"bytes":     receipt.Bytes,
		},
	})
}

func (s *HTTPServer) handleDiscardEmail(w http.ResponseWriter, r *http.Request, session Session) {
	s.respond(w, r)(s.service.DiscardEmail(r.Context(), session))
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.service.Export(r.Context(), session, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	if result.Reference != "" {
		w.Header().Set("X-Export-Reference", result.Reference)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// respond writes a workspace view or the mapped error.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request) func(WorkspaceView, error) {
	return func(view WorkspaceView, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) authed(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		next(w, r, session)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Export-Reference, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
