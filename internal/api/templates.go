package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lunaticom/campaign-builder/internal/apperr"
	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/metrics"
	"github.com/lunaticom/campaign-builder/internal/template"
)

// TemplateRequest is the request body for creating or replacing a template
type TemplateRequest struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	HTML        string `json:"html"`
}

// TemplateResponse is the response for a template
type TemplateResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Description  string    `json:"description,omitempty"`
	HTML         string    `json:"html,omitempty"`
	Placeholders []string  `json:"placeholders"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TemplateListResponse is the response for listing templates
type TemplateListResponse struct {
	Templates []*TemplateResponse `json:"templates"`
	Total     int                 `json:"total"`
}

// registerTemplateRoutes registers template admin routes
func (s *Server) registerTemplateRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.handleTemplateList)
		r.Post("/", s.handleTemplateCreate)
		r.Get("/{type}", s.handleTemplateGet)
		r.Put("/{type}", s.handleTemplatePut)
		r.Delete("/{type}", s.handleTemplateDelete)
	})
}

// handleTemplateList handles GET /api/v1/templates
func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	filter := template.ListFilter{
		Search: r.URL.Query().Get("search"),
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	templates, err := s.svc.Templates.List(r.Context(), filter)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	resp := TemplateListResponse{
		Templates: make([]*TemplateResponse, len(templates)),
		Total:     len(templates),
	}
	for i, tmpl := range templates {
		resp.Templates[i] = templateToResponse(tmpl, false)
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// handleTemplateCreate handles POST /api/v1/templates
func (s *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Type == "" {
		s.sendError(w, http.StatusBadRequest, "type is required")
		return
	}
	tt, ok := s.templateType(w, r, req.Type)
	if !ok {
		return
	}
	if req.HTML == "" {
		s.sendError(w, http.StatusBadRequest, "html is required")
		return
	}

	tmpl := &template.Template{
		Name:        tt.Key(),
		Description: req.Description,
		HTML:        req.HTML,
	}

	if err := s.svc.Templates.Create(r.Context(), tmpl); err != nil {
		if errors.Is(err, template.ErrExists) {
			s.sendError(w, http.StatusConflict, err.Error())
			return
		}
		s.sendAppError(w, r, err)
		return
	}

	s.logger.Info("template created", "type", tt, "id", tmpl.ID)
	s.refreshTemplateGauge(r)
	s.sendJSON(w, http.StatusCreated, templateToResponse(tmpl, true))
}

// handleTemplateGet handles GET /api/v1/templates/{type}
func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	tt, ok := s.templateType(w, r, chi.URLParam(r, "type"))
	if !ok {
		return
	}

	tmpl, err := s.svc.Templates.GetByName(r.Context(), tt.Key())
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	if tmpl == nil {
		s.sendAppError(w, r, apperr.NotFound("Template not found"))
		return
	}

	s.sendJSON(w, http.StatusOK, templateToResponse(tmpl, true))
}

// handleTemplatePut handles PUT /api/v1/templates/{type}
func (s *Server) handleTemplatePut(w http.ResponseWriter, r *http.Request) {
	tt, ok := s.templateType(w, r, chi.URLParam(r, "type"))
	if !ok {
		return
	}

	var req TemplateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.HTML == "" {
		s.sendError(w, http.StatusBadRequest, "html is required")
		return
	}

	tmpl := &template.Template{
		Name:        tt.Key(),
		Description: req.Description,
		HTML:        req.HTML,
	}
	if err := s.svc.Templates.Put(r.Context(), tmpl); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	s.logger.Info("template stored", "type", tt, "version", tmpl.Version)
	s.refreshTemplateGauge(r)
	s.sendJSON(w, http.StatusOK, templateToResponse(tmpl, true))
}

// handleTemplateDelete handles DELETE /api/v1/templates/{type}
func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	tt, ok := s.templateType(w, r, chi.URLParam(r, "type"))
	if !ok {
		return
	}

	if err := s.svc.Templates.DeleteByName(r.Context(), tt.Key()); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	s.logger.Info("template deleted", "type", tt)
	s.refreshTemplateGauge(r)
	w.WriteHeader(http.StatusNoContent)
}

// templateType parses a path or body type against the allow-list
func (s *Server) templateType(w http.ResponseWriter, r *http.Request, raw string) (campaign.TemplateType, bool) {
	tt, err := campaign.ParseTemplateType(raw)
	if err != nil {
		s.sendAppError(w, r, apperr.Validationf(err, "invalid template type"))
		return "", false
	}
	return tt, true
}

func (s *Server) refreshTemplateGauge(r *http.Request) {
	if stats, err := s.svc.Templates.Stats(r.Context()); err == nil {
		metrics.SetTemplatesStored(stats.Total)
	}
}

func templateToResponse(tmpl *template.Template, withHTML bool) *TemplateResponse {
	resp := &TemplateResponse{
		ID:           tmpl.ID,
		Type:         strings.ToUpper(tmpl.Name),
		Description:  tmpl.Description,
		Placeholders: tmpl.Placeholders,
		Version:      tmpl.Version,
		CreatedAt:    tmpl.CreatedAt,
		UpdatedAt:    tmpl.UpdatedAt,
	}
	if resp.Placeholders == nil {
		resp.Placeholders = []string{}
	}
	if withHTML {
		resp.HTML = tmpl.HTML
	}
	return resp
}
