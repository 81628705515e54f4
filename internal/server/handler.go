package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/auth"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/code"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/config"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/cost"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Handler bundles the REST handlers with their injected services.
type Handler struct {
	cfg      config.Config
	db       *gorm.DB
	users    *service.UserService
	projects *service.ProjectService
	likes    *service.LikeService
	gov      *cost.Governor
}

func NewHandler(cfg config.Config, db *gorm.DB, users *service.UserService, projects *service.ProjectService, likes *service.LikeService, gov *cost.Governor) *Handler {
	return &Handler{cfg: cfg, db: db, users: users, projects: projects, likes: likes, gov: gov}
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	maxAge := h.cfg.SessionTTLHours * 3600
	c.SetCookie("session_token", token, maxAge, "/", "", false, true)
}

// Signup registers a workshop participant and creates their first
// project in one go.
func (h *Handler) Signup(c *gin.Context) {
	var req struct {
		WorkshopID  uint   `json:"workshop_id"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	user, err := h.users.Signup(req.WorkshopID, req.Username, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Benutzername bereits vergeben"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("signup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	site, err := h.projects.Create(user.ID, "Meine Website", "default")
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("signup initial project")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	h.setSessionCookie(c, user.SessionToken)
	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"display_name":  user.DisplayName,
		"session_token": user.SessionToken,
		"website_id":    site.ID,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		WorkshopID uint   `json:"workshop_id"`
		Username   string `json:"username"`
		Password   string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user, err := h.users.Login(req.WorkshopID, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Ungültige Anmeldedaten"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	h.setSessionCookie(c, user.SessionToken)
	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"display_name":  user.DisplayName,
		"session_token": user.SessionToken,
		"role":          user.Role,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.users.Logout(auth.SessionToken(c)); err != nil {
		log.Warn().Err(err).Msg("logout")
	}
	c.SetCookie("session_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type websiteDTO struct {
	ID        uint              `json:"id"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	HTML      string            `json:"html"`
	CSS       string            `json:"css"`
	JS        string            `json:"js"`
	IsActive  bool              `json:"is_active"`
	IsPublic  bool              `json:"is_public"`
	Tags      models.StringList `json:"tags"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func toWebsiteDTO(s models.Website) websiteDTO {
	return websiteDTO{
		ID: s.ID, Name: s.Name, Slug: s.Slug,
		HTML: s.HTML, CSS: s.CSS, JS: s.JS,
		IsActive: s.IsActive, IsPublic: s.IsPublic,
		Tags: s.Tags, UpdatedAt: s.UpdatedAt,
	}
}

func (h *Handler) ListWebsites(c *gin.Context) {
	sites, err := h.projects.List(auth.GetUserID(c))
	if err != nil {
		log.Error().Err(err).Msg("list websites")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list websites"})
		return
	}
	out := make([]websiteDTO, 0, len(sites))
	for _, s := range sites {
		out = append(out, toWebsiteDTO(s))
	}
	c.JSON(http.StatusOK, gin.H{"websites": out})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) GetWebsite(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	site, err := h.projects.Resolve(auth.GetUserID(c), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Projekt nicht gefunden"})
		return
	}
	c.JSON(http.StatusOK, toWebsiteDTO(*site))
}

// UpdateWebsite is the manual save path. Invalid code is rejected with
// the itemized validation reasons; nothing is sanitized here.
func (h *Handler) UpdateWebsite(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		HTML *string `json:"html"`
		CSS  *string `json:"css"`
		JS   *string `json:"js"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	site, err := h.projects.ManualUpdate(auth.GetUserID(c), id, req.HTML, req.CSS, req.JS)
	if err != nil {
		var verr *code.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Code-Validierung fehlgeschlagen", "reasons": verr.Reasons})
			return
		}
		if errors.Is(err, service.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Projekt nicht gefunden"})
			return
		}
		log.Error().Err(err).Uint("website_id", id).Msg("update website")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update website"})
		return
	}
	c.JSON(http.StatusOK, toWebsiteDTO(*site))
}

func (h *Handler) Rollback(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Steps int `json:"steps"`
	}
	_ = c.ShouldBindJSON(&req)
	site, target, err := h.projects.Rollback(auth.GetUserID(c), id, req.Steps)
	if err != nil {
		if errors.Is(err, service.ErrNoHistory) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Keine Historie zum Zurücksetzen"})
			return
		}
		if errors.Is(err, service.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Projekt nicht gefunden"})
			return
		}
		log.Error().Err(err).Uint("website_id", id).Msg("rollback")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rollback failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"website":     toWebsiteDTO(*site),
		"restored_at": target.CreatedAt,
	})
}

// CloneTemplate copies another user's active public site over the
// caller's active site.
func (h *Handler) CloneTemplate(c *gin.Context) {
	sourceID, err := strconv.Atoi(c.Param("userId"))
	if err != nil || sourceID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	site, err := h.projects.CloneFrom(auth.GetUserID(c), uint(sourceID))
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Projekt nicht gefunden"})
			return
		}
		log.Error().Err(err).Int("source_user", sourceID).Msg("clone template")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clone failed"})
		return
	}
	c.JSON(http.StatusOK, toWebsiteDTO(*site))
}

// Gallery lists public sites with owner names and like counts.
func (h *Handler) Gallery(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	sites, err := h.projects.PublicSites(limit)
	if err != nil {
		log.Error().Err(err).Msg("gallery")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list gallery"})
		return
	}
	type galleryDTO struct {
		websiteDTO
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		LikeCount   int64  `json:"like_count"`
	}
	out := make([]galleryDTO, 0, len(sites))
	for _, s := range sites {
		var owner models.User
		if err := h.db.Select("id", "username", "display_name").First(&owner, s.UserID).Error; err != nil {
			continue
		}
		likes, _ := h.likes.Count(s.ID)
		out = append(out, galleryDTO{
			websiteDTO:  toWebsiteDTO(s),
			Username:    owner.Username,
			DisplayName: owner.DisplayName,
			LikeCount:   likes,
		})
	}
	c.JSON(http.StatusOK, gin.H{"websites": out})
}

// AdminToken exchanges an admin's session for a short-lived JWT used by
// the admin endpoints.
func (h *Handler) AdminToken(c *gin.Context) {
	user := auth.GetUser(c)
	if user == nil || user.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}
	token, err := auth.GenerateAdminToken(user.ID, h.cfg.JWTSecret, h.cfg.AdminTokenMinutes)
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("admin token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in_minutes": h.cfg.AdminTokenMinutes})
}

// AdminStats reports per-user spend and call counts for the workshop
// overview dashboard.
func (h *Handler) AdminStats(c *gin.Context) {
	var users []models.User
	if err := h.db.Order("id").Find(&users).Error; err != nil {
		log.Error().Err(err).Msg("admin stats users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	type userStats struct {
		UserID      uint       `json:"user_id"`
		Username    string     `json:"username"`
		DisplayName string     `json:"display_name"`
		Stats       cost.Stats `json:"stats"`
	}
	out := make([]userStats, 0, len(users))
	var totalCost float64
	for _, u := range users {
		s, err := h.gov.UserStats(u.ID)
		if err != nil {
			log.Error().Err(err).Uint("user_id", u.ID).Msg("admin stats")
			continue
		}
		totalCost += s.TotalCost
		out = append(out, userStats{UserID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Stats: s})
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total_cost": totalCost})
}
