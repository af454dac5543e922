package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lunaticom/campaign-builder/internal/apperr"
	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/document"
	"github.com/lunaticom/campaign-builder/internal/format"
	"github.com/lunaticom/campaign-builder/internal/metrics"
	"github.com/lunaticom/campaign-builder/internal/proof"
)

// PreviewRequest is the request body for POST /preview. Text formats a
// single block; Body and Terms format the two prose fields of a campaign.
type PreviewRequest struct {
	Text  string `json:"text"`
	Body  string `json:"body"`
	Terms string `json:"terms"`
}

// PreviewResponse is the response for POST /preview
type PreviewResponse struct {
	HTML      string `json:"html,omitempty"`
	BodyHTML  string `json:"body_html"`
	TermsHTML string `json:"terms_html"`
}

// UploadImageRequest is the request body for POST /upload-image
type UploadImageRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Name        string `json:"name"`
}

// UploadImageResponse is the response for POST /upload-image
type UploadImageResponse struct {
	URL        string `json:"url"`
	DisplayURL string `json:"display_url"`
	DeleteURL  string `json:"delete_url"`
}

// SubmitResponse is the response for POST /submit
type SubmitResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

// ProofRequest is a campaign payload plus the proof recipients
type ProofRequest struct {
	campaign.Payload
	To []string `json:"to"`
}

// ProofResponse is the response for POST /proof
type ProofResponse struct {
	MessageID string `json:"message_id"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Templates *int64 `json:"templates,omitempty"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.svc.Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	}

	if s.svc.Templates != nil {
		if stats, err := s.svc.Templates.Stats(r.Context()); err == nil {
			resp.Templates = &stats.Total
		}
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// handlePreview handles POST /api/v1/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp := PreviewResponse{
		BodyHTML:  format.Format(req.Body, s.preview),
		TermsHTML: format.Format(req.Terms, s.preview),
	}
	if req.Text != "" {
		resp.HTML = format.Format(req.Text, s.preview)
	}

	metrics.IncPreviews()
	s.sendJSON(w, http.StatusOK, resp)
}

// handleGenerateHTML handles POST /api/v1/generate-html
func (s *Server) handleGenerateHTML(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}

	doc, err := s.svc.Generator.HTML(r.Context(), rec)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	metrics.IncDocumentsGenerated("html", rec.TemplateType.String())
	s.sendDocument(w, doc)
}

// handleGenerateBrief handles POST /api/v1/generate-brief
func (s *Server) handleGenerateBrief(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}

	doc := s.svc.Generator.Brief(rec)

	metrics.IncDocumentsGenerated("brief", rec.TemplateType.String())
	s.sendDocument(w, doc)
}

// handleUploadImage handles POST /api/v1/upload-image
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	var req UploadImageRequest
	if !s.decode(w, r, &req) {
		return
	}

	start := time.Now()
	up, err := s.svc.Images.Upload(r.Context(), req.ImageBase64, req.Name)
	observeUpstream("imgbb", start, err)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, UploadImageResponse{
		URL:        up.URL,
		DisplayURL: up.DisplayURL,
		DeleteURL:  up.DeleteURL,
	})
}

// handleSubmit handles POST /api/v1/submit
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.decodeRecord(w, r)
	if !ok {
		return
	}

	start := time.Now()
	payload, err := s.svc.Hook.Submit(r.Context(), rec)
	observeUpstream("webhook", start, err)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	s.logger.Info("campaign submitted",
		"id", payload.ID,
		"template_type", payload.TemplateType,
		"request_id", middleware.GetReqID(r.Context()),
	)
	s.sendJSON(w, http.StatusOK, SubmitResponse{OK: true, ID: payload.ID})
}

// handleProof handles POST /api/v1/proof
func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	var req ProofRequest
	if !s.decode(w, r, &req) {
		return
	}

	if s.svc.Proof == nil {
		s.sendAppError(w, r, apperr.Configuration("proof sending is disabled"))
		return
	}

	rec, err := req.Payload.Record()
	if err != nil {
		s.sendAppError(w, r, apperr.Validationf(err, "invalid templateType"))
		return
	}

	html, err := s.svc.Generator.RenderHTML(r.Context(), rec)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	subject := rec.Subject
	if strings.TrimSpace(subject) == "" {
		subject = fmt.Sprintf("%s campaign proof", rec.TemplateType)
	}

	start := time.Now()
	id, err := s.svc.Proof.Send(r.Context(), &proof.Message{
		To:      req.To,
		Subject: "[PROOF] " + subject,
		Text:    s.svc.Generator.BriefText(rec),
		HTML:    html,
	})
	observeUpstream("proof", start, err)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, ProofResponse{MessageID: id})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.sendError(w, http.StatusNotFound, "Not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// decodeRecord decodes a campaign payload and normalizes it
func (s *Server) decodeRecord(w http.ResponseWriter, r *http.Request) (campaign.Record, bool) {
	var p campaign.Payload
	if !s.decode(w, r, &p) {
		return campaign.Record{}, false
	}

	rec, err := p.Record()
	if err != nil {
		s.sendAppError(w, r, apperr.Validationf(err, "invalid templateType"))
		return campaign.Record{}, false
	}
	return rec, true
}

// decode reads a JSON body into v. An empty body leaves v zero-valued.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.sendError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}

	s.sendError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

// sendDocument writes a generated file as a download
func (s *Server) sendDocument(w http.ResponseWriter, doc *document.Document) {
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc.Body))
}

// sendAppError maps a classified error to its status and logs it
func (s *Server) sendAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	msg, details := apperr.Message(err)
	reqID := middleware.GetReqID(r.Context())

	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound:
		s.logger.Debug("request rejected", "path", r.URL.Path, "error", err, "request_id", reqID)
	case apperr.KindUpstream:
		s.logger.Warn("upstream failure", "path", r.URL.Path, "error", err, "details", details, "request_id", reqID)
	case apperr.KindConfiguration:
		s.logger.Error("configuration error", "path", r.URL.Path, "error", err, "request_id", reqID)
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", reqID)
		msg, details = "Server error", nil
	}

	s.sendJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}

// observeUpstream records calls that reached the third party
func observeUpstream(name string, start time.Time, err error) {
	if err != nil {
		if k := apperr.KindOf(err); k == apperr.KindValidation || k == apperr.KindConfiguration {
			return
		}
	}
	metrics.ObserveUpstream(name, start, err)
}
