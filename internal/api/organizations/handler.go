// Package organizations provides CRUD handlers for tenant management.
package organizations

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmritesh/Refari-Notifier/internal/models"
	"github.com/dmritesh/Refari-Notifier/internal/storage"
)

// Response helpers (local to avoid import cycle)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}

// Error codes
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

// OAuthService starts and completes the Hubstaff connection flow.
type OAuthService interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, orgID, code string) error
}

// Handler handles organization management requests.
type Handler struct {
	storage storage.Storage
	oauth   OAuthService
}

// NewHandler creates an organizations handler. oauth may be nil when
// the Hubstaff client credentials are not configured.
func NewHandler(store storage.Storage, oauth OAuthService) *Handler {
	return &Handler{storage: store, oauth: oauth}
}

// OrganizationRequest is the create/update payload. Secret fields are
// write-only: empty values on update keep the stored secret.
type OrganizationRequest struct {
	Name                   string `json:"name"`
	NotificationGapMinutes int    `json:"notification_gap_minutes"`
	FreshdeskDomain        string `json:"freshdesk_domain"`
	FreshdeskAPIKey        string `json:"freshdesk_api_key"`
	SlackWebhookURL        string `json:"slack_webhook_url"`
	GitLabDomain           string `json:"gitlab_domain"`
	GitLabProjectPath      string `json:"gitlab_project_path"`
	GitLabAPIKey           string `json:"gitlab_api_key"`
}

// OrganizationResponse is an organization without secret material.
type OrganizationResponse struct {
	ID                     string     `json:"id"`
	Name                   string     `json:"name"`
	IsActive               bool       `json:"is_active"`
	NotificationGapMinutes int        `json:"notification_gap_minutes"`
	FreshdeskDomain        string     `json:"freshdesk_domain"`
	GitLabDomain           string     `json:"gitlab_domain,omitempty"`
	GitLabProjectPath      string     `json:"gitlab_project_path,omitempty"`
	HubstaffConnected      bool       `json:"hubstaff_connected"`
	LastCheckedAt          *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

func toResponse(org *models.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:                     org.ID,
		Name:                   org.Name,
		IsActive:               org.IsActive,
		NotificationGapMinutes: org.NotificationGapMinutes,
		FreshdeskDomain:        org.FreshdeskDomain,
		GitLabDomain:           org.GitLabDomain,
		GitLabProjectPath:      org.GitLabProjectPath,
		HubstaffConnected:      org.HasHubstaffCredentials(),
		LastCheckedAt:          org.LastCheckedAt,
		CreatedAt:              org.CreatedAt,
		UpdatedAt:              org.UpdatedAt,
	}
}

// List returns all organizations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.storage.Organizations().List(r.Context())
	if err != nil {
		log.Printf("failed to list organizations: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	resp := make([]OrganizationResponse, 0, len(orgs))
	for _, org := range orgs {
		resp = append(resp, toResponse(org))
	}
	jsonOK(w, resp)
}

// Create registers a new organization.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req OrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid request body")
		return
	}
	if err := validateCreate(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	org := models.NewOrganization(req.Name)
	org.ID = uuid.New().String()
	if req.NotificationGapMinutes > 0 {
		org.NotificationGapMinutes = req.NotificationGapMinutes
	}
	org.FreshdeskDomain = req.FreshdeskDomain
	org.GitLabDomain = req.GitLabDomain
	org.GitLabProjectPath = req.GitLabProjectPath

	if err := h.applySecrets(org, &req); err != nil {
		log.Printf("failed to encrypt organization secrets: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	if err := h.storage.Organizations().Create(r.Context(), org); err != nil {
		log.Printf("failed to create organization: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	jsonCreated(w, toResponse(org))
}

// GetByID returns a single organization.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	org, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonOK(w, toResponse(org))
}

// Update modifies an organization's settings. Empty secret fields keep
// the stored values.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	org, ok := h.load(w, r)
	if !ok {
		return
	}

	var req OrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid request body")
		return
	}
	if err := validateUpdate(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	if req.Name != "" {
		org.Name = req.Name
	}
	if req.NotificationGapMinutes > 0 {
		org.NotificationGapMinutes = req.NotificationGapMinutes
	}
	if req.FreshdeskDomain != "" {
		org.FreshdeskDomain = req.FreshdeskDomain
	}
	if req.GitLabDomain != "" {
		org.GitLabDomain = req.GitLabDomain
	}
	if req.GitLabProjectPath != "" {
		org.GitLabProjectPath = req.GitLabProjectPath
	}
	if err := h.applySecrets(org, &req); err != nil {
		log.Printf("failed to encrypt organization secrets: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}

	if err := h.storage.Organizations().Update(r.Context(), org); err != nil {
		log.Printf("failed to update organization %s: %v", org.ID, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return
	}
	jsonOK(w, toResponse(org))
}

// Delete removes an organization.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.storage.Organizations().Delete(r.Context(), id); err != nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Organization not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Pause stops polling for an organization.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Resume restarts polling for an organization.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")
	if err := h.storage.Organizations().SetActive(r.Context(), id, active); err != nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Organization not found")
		return
	}
	jsonOK(w, map[string]any{"id": id, "is_active": active})
}

// Connect returns the Hubstaff authorization URL for an organization.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Hubstaff OAuth is not configured")
		return
	}
	org, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonOK(w, map[string]string{"authorization_url": h.oauth.AuthorizationURL(org.ID)})
}

// Callback completes the Hubstaff OAuth flow. The state parameter
// carries the organization id issued by Connect.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Hubstaff OAuth is not configured")
		return
	}
	code := r.URL.Query().Get("code")
	orgID := r.URL.Query().Get("state")
	if code == "" || orgID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "code and state are required")
		return
	}

	if err := h.oauth.Exchange(r.Context(), orgID, code); err != nil {
		log.Printf("oauth exchange failed for org %s: %v", orgID, err)
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Token exchange failed")
		return
	}
	jsonOK(w, map[string]string{"id": orgID, "status": "connected"})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Organization, bool) {
	id := chi.URLParam(r, "id")
	org, err := h.storage.Organizations().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("failed to load organization %s: %v", id, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Internal server error")
		return nil, false
	}
	if org == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Organization not found")
		return nil, false
	}
	return org, true
}

func (h *Handler) applySecrets(org *models.Organization, req *OrganizationRequest) error {
	repo := h.storage.Organizations()
	if req.SlackWebhookURL != "" {
		blob, err := repo.SealSecret(req.SlackWebhookURL)
		if err != nil {
			return err
		}
		org.SlackWebhookURL = blob
	}
	if req.FreshdeskAPIKey != "" {
		blob, err := repo.SealSecret(req.FreshdeskAPIKey)
		if err != nil {
			return err
		}
		org.FreshdeskAPIKey = blob
	}
	if req.GitLabAPIKey != "" {
		blob, err := repo.SealSecret(req.GitLabAPIKey)
		if err != nil {
			return err
		}
		org.GitLabAPIKey = blob
	}
	return nil
}
