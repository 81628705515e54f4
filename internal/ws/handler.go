package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/ai"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/code"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/metrics"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/service"
	"github.com/rs/zerolog/log"
)

// Envelope is the inbound message frame. Only Type is always present;
// the other fields belong to specific message types. CurrentCode sent by
// the browser is advisory and ignored, the database is authoritative.
type Envelope struct {
	Type        string          `json:"type"`
	Prompt      string          `json:"prompt,omitempty"`
	ProjectID   uint            `json:"project_id,omitempty"`
	WebsiteID   uint            `json:"website_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	TemplateID  string          `json:"template_id,omitempty"`
	Code        *CodePayload    `json:"code,omitempty"`
	CurrentCode json.RawMessage `json:"currentCode,omitempty"`
}

// CodePayload carries the file bodies of a manual save. Nil fields
// leave the stored file untouched.
type CodePayload struct {
	HTML *string `json:"html,omitempty"`
	CSS  *string `json:"css,omitempty"`
	JS   *string `json:"js,omitempty"`
}

// Handler routes inbound socket messages to the domain services. One
// instance is shared by all connections.
type Handler struct {
	registry     *Registry
	scheduler    *GalleryScheduler
	orchestrator *ai.Orchestrator
	projects     *service.ProjectService
	likes        *service.LikeService
}

func NewHandler(registry *Registry, scheduler *GalleryScheduler, orchestrator *ai.Orchestrator, projects *service.ProjectService, likes *service.LikeService) *Handler {
	return &Handler{
		registry:     registry,
		scheduler:    scheduler,
		orchestrator: orchestrator,
		projects:     projects,
		likes:        likes,
	}
}

// sendInitialState pushes the project list and the active project's code
// right after registration, so the editor renders without a round trip.
func (h *Handler) sendInitialState(user *models.User) {
	sites, err := h.projects.List(user.ID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("initial project list failed")
		return
	}
	h.registry.SendTo(user.ID, "connection_status", map[string]interface{}{
		"connected":   true,
		"userId":      user.ID,
		"username":    user.Username,
		"displayName": user.DisplayName,
		"projects":    projectSummaries(sites),
	})
	for i := range sites {
		if sites[i].IsActive {
			h.registry.SendTo(user.ID, "code_update", map[string]interface{}{
				"html":       sites[i].HTML,
				"css":        sites[i].CSS,
				"js":         sites[i].JS,
				"changeType": "sync",
				"sync":       true,
				"projectId":  sites[i].ID,
			})
			break
		}
	}
}

type projectSummary struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"is_active"`
	IsPublic bool   `json:"is_public"`
}

func projectSummaries(sites []models.Website) []projectSummary {
	out := make([]projectSummary, 0, len(sites))
	for _, s := range sites {
		out = append(out, projectSummary{ID: s.ID, Name: s.Name, Slug: s.Slug, IsActive: s.IsActive, IsPublic: s.IsPublic})
	}
	return out
}

// dispatch handles one inbound frame. Panics are contained per message;
// the read loop keeps serving after an error reply.
func (h *Handler) dispatch(ctx context.Context, c *Client, user *models.User, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint("user_id", user.ID).Msg("ws handler panicked")
			h.registry.SendTo(user.ID, "error", map[string]string{"message": "Interner Fehler"})
		}
	}()
	metrics.WsMessagesTotal.Inc()

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.registry.SendTo(user.ID, "error", map[string]string{"message": "Ungültige Nachricht"})
		return
	}

	switch env.Type {
	case "ping":
		h.registry.SendTo(user.ID, "pong", nil)
	case "ai_request":
		h.orchestrator.HandleRequest(ctx, user, env.Prompt, env.ProjectID)
	case "code_update":
		h.handleManualUpdate(user, env)
	case "toggle_like":
		h.handleToggleLike(user, env)
	case "switch_project":
		h.handleSwitchProject(user, env)
	case "create_project":
		h.handleCreateProject(user, env)
	case "toggle_project_public":
		h.handleTogglePublic(user, env)
	default:
		h.registry.SendTo(user.ID, "error", map[string]string{"message": "Unbekannter Nachrichtentyp: " + env.Type})
	}
}

func (h *Handler) handleManualUpdate(user *models.User, env Envelope) {
	var html, css, js *string
	if env.Code != nil {
		html, css, js = env.Code.HTML, env.Code.CSS, env.Code.JS
	}
	site, err := h.projects.ManualUpdate(user.ID, env.ProjectID, html, css, js)
	if err != nil {
		var verr *code.ValidationError
		if errors.As(err, &verr) {
			h.registry.SendTo(user.ID, "error", map[string]interface{}{
				"message": "Code-Validierung fehlgeschlagen",
				"reasons": verr.Reasons,
			})
			return
		}
		if errors.Is(err, service.ErrProjectNotFound) {
			h.registry.SendTo(user.ID, "error", map[string]string{"message": "Projekt nicht gefunden"})
			return
		}
		log.Error().Err(err).Uint("user_id", user.ID).Msg("manual update failed")
		h.registry.SendTo(user.ID, "error", map[string]string{"message": "Speichern fehlgeschlagen"})
		return
	}
	h.registry.SendTo(user.ID, "save_confirmation", map[string]interface{}{
		"saved":     true,
		"projectId": site.ID,
		"timestamp": time.Now().UTC(),
	})
	if site.IsPublic {
		h.scheduler.Queue(user.WorkshopID, user.ID, ai.GalleryPreview{
			ProjectID:       site.ID,
			HTML:            site.HTML,
			CSS:             site.CSS,
			JS:              site.JS,
			Name:            site.Name,
			Slug:            site.Slug,
			Description:     site.Description,
			Tags:            site.Tags,
			Username:        user.Username,
			UserDisplayName: user.DisplayName,
			IsCollaborative: site.IsCollaborative,
			UpdatedAt:       site.UpdatedAt,
		})
	}
}

func (h *Handler) handleToggleLike(user *models.User, env Envelope) {
	liked, count, site, err := h.likes.Toggle(user.ID, env.WebsiteID)
	if err != nil {
		h.registry.SendTo(user.ID, "error", map[string]string{"message": "Projekt nicht gefunden"})
		return
	}
	h.registry.SendTo(user.ID, "like_update", map[string]interface{}{
		"websiteId": site.ID,
		"liked":     liked,
		"likeCount": count,
	})
	h.registry.Broadcast("gallery_like_update", map[string]interface{}{
		"websiteId": site.ID,
		"likeCount": count,
	}, user.WorkshopID, user.ID)
}

func (h *Handler) handleSwitchProject(user *models.User, env Envelope) {
	site, err := h.projects.Switch(user.ID, env.ProjectID)
	if err != nil {
		h.registry.SendTo(user.ID, "error", map[string]string{"message": "Projekt nicht gefunden"})
		return
	}
	h.registry.SendTo(user.ID, "project_switched", map[string]interface{}{
		"projectId": site.ID,
		"name":      site.Name,
		"html":      site.HTML,
		"css":       site.CSS,
		"js":        site.JS,
		"isPublic":  site.IsPublic,
	})
}

func (h *Handler) handleCreateProject(user *models.User, env Envelope) {
	site, err := h.projects.Create(user.ID, env.Name, env.TemplateID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("project create failed")
		h.registry.SendTo(user.ID, "error", map[string]string{"message": "Projekt konnte nicht erstellt werden"})
		return
	}
	h.registry.SendTo(user.ID, "project_created", map[string]interface{}{
		"projectId": site.ID,
		"name":      site.Name,
		"slug":      site.Slug,
		"html":      site.HTML,
		"css":       site.CSS,
		"js":        site.JS,
		"isPublic":  site.IsPublic,
	})
}

func (h *Handler) handleTogglePublic(user *models.User, env Envelope) {
	site, err := h.projects.TogglePublic(user.ID, env.ProjectID)
	if err != nil {
		h.registry.SendTo(user.ID, "error", map[string]string{"message": "Projekt nicht gefunden"})
		return
	}
	h.registry.SendTo(user.ID, "project_visibility_updated", map[string]interface{}{
		"projectId": site.ID,
		"isPublic":  site.IsPublic,
	})
	if site.IsPublic {
		h.scheduler.Queue(user.WorkshopID, user.ID, ai.GalleryPreview{
			ProjectID:       site.ID,
			HTML:            site.HTML,
			CSS:             site.CSS,
			JS:              site.JS,
			Name:            site.Name,
			Slug:            site.Slug,
			Description:     site.Description,
			Tags:            site.Tags,
			Username:        user.Username,
			UserDisplayName: user.DisplayName,
			IsCollaborative: site.IsCollaborative,
			UpdatedAt:       site.UpdatedAt,
		})
	}
}
