package service

import (
	"errors"
	"strings"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/code"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectService owns all mutations of websites and their history.
// Every code mutation snapshots the pre-mutation state first, so the
// history table always holds exactly one entry per committed change.
type ProjectService struct {
	db *gorm.DB
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

// List returns the user's projects, most recently updated first.
func (s *ProjectService) List(userID uint) ([]models.Website, error) {
	var sites []models.Website
	err := s.db.Where("user_id = ?", userID).Order("updated_at desc").Find(&sites).Error
	return sites, err
}

// Resolve returns the project with the given id if the user owns it, or
// the user's active project when no id is given.
func (s *ProjectService) Resolve(userID, projectID uint) (*models.Website, error) {
	q := s.db.Where("user_id = ?", userID)
	if projectID > 0 {
		q = q.Where("id = ?", projectID)
	} else {
		q = q.Where("is_active = ?", true)
	}
	var site models.Website
	if err := q.First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &site, nil
}

func (s *ProjectService) Active(userID uint) (*models.Website, error) {
	return s.Resolve(userID, 0)
}

// Get returns any project by id regardless of owner (gallery lookups).
func (s *ProjectService) Get(websiteID uint) (*models.Website, error) {
	var site models.Website
	if err := s.db.First(&site, websiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &site, nil
}

func newSlug() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Create deactivates the user's other projects and creates a new active
// one from a template. The user's first project is public by default.
func (s *ProjectService) Create(userID uint, name, templateID string) (*models.Website, error) {
	if strings.TrimSpace(name) == "" {
		name = "Neues Projekt"
	}
	tpl := Template(templateID)
	site := models.Website{
		UserID:   userID,
		Name:     name,
		Slug:     newSlug(),
		HTML:     tpl.HTML,
		CSS:      tpl.CSS,
		JS:       tpl.JS,
		IsActive: true,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Website{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		site.IsPublic = count == 0
		if err := tx.Model(&models.Website{}).Where("user_id = ?", userID).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Create(&site).Error; err != nil {
			return err
		}
		history := models.CodeHistory{
			WebsiteID:  site.ID,
			HTML:       site.HTML,
			CSS:        site.CSS,
			JS:         site.JS,
			ChangeType: models.ChangeManual,
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// Switch makes the given project the user's single active one.
func (s *ProjectService) Switch(userID, projectID uint) (*models.Website, error) {
	site, err := s.Resolve(userID, projectID)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Website{}).Where("user_id = ?", userID).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.Website{}).Where("id = ?", site.ID).Update("is_active", true).Error
	})
	if err != nil {
		return nil, err
	}
	site.IsActive = true
	return site, nil
}

func (s *ProjectService) TogglePublic(userID, projectID uint) (*models.Website, error) {
	site, err := s.Resolve(userID, projectID)
	if err != nil {
		return nil, err
	}
	site.IsPublic = !site.IsPublic
	if err := s.db.Model(&models.Website{}).Where("id = ?", site.ID).Update("is_public", site.IsPublic).Error; err != nil {
		return nil, err
	}
	return site, nil
}

// CommitChange snapshots the project's current code into history, then
// commits the new code. The snapshot always holds the pre-mutation
// state; site is updated in place on success.
func (s *ProjectService) CommitChange(site *models.Website, newCode code.Code, ct models.ChangeType, llmCallID *uint) error {
	now := time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		history := models.CodeHistory{
			WebsiteID:  site.ID,
			HTML:       site.HTML,
			CSS:        site.CSS,
			JS:         site.JS,
			ChangeType: ct,
			LLMCallID:  llmCallID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		return tx.Model(&models.Website{}).Where("id = ?", site.ID).Updates(map[string]interface{}{
			"html":       newCode.HTML,
			"css":        newCode.CSS,
			"js":         newCode.JS,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return err
	}
	site.HTML = newCode.HTML
	site.CSS = newCode.CSS
	site.JS = newCode.JS
	site.UpdatedAt = now
	return nil
}

// ManualUpdate validates and commits a user-authored edit. Unlike the AI
// pipeline it never sanitizes: invalid code is rejected with the full
// list of violations so the user can fix it.
func (s *ProjectService) ManualUpdate(userID, projectID uint, html, css, js *string) (*models.Website, error) {
	site, err := s.Resolve(userID, projectID)
	if err != nil {
		return nil, err
	}
	current := code.Code{HTML: site.HTML, CSS: site.CSS, JS: site.JS}
	newCode := current.Merge(html, css, js)
	if ok, reasons := code.Validate(newCode); !ok {
		return nil, &code.ValidationError{Reasons: reasons}
	}
	if err := s.CommitChange(site, newCode, models.ChangeManual, nil); err != nil {
		return nil, err
	}
	return site, nil
}

// Rollback restores the nth previous non-rollback state. The snapshot
// written for the rollback itself is tagged rollback and therefore
// invisible to later rollbacks, which prevents rollback cycles. No
// snapshot is written when the current state already equals the target.
func (s *ProjectService) Rollback(userID, projectID uint, steps int) (*models.Website, *models.CodeHistory, error) {
	if steps <= 0 {
		steps = 1
	}
	site, err := s.Resolve(userID, projectID)
	if err != nil {
		return nil, nil, err
	}
	var entries []models.CodeHistory
	err = s.db.Where("website_id = ? AND change_type <> ?", site.ID, models.ChangeRollback).
		Order("created_at desc, id desc").
		Limit(steps).
		Find(&entries).Error
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return nil, nil, ErrNoHistory
	}
	target := entries[len(entries)-1]

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if site.HTML != target.HTML || site.CSS != target.CSS || site.JS != target.JS {
			snapshot := models.CodeHistory{
				WebsiteID:  site.ID,
				HTML:       site.HTML,
				CSS:        site.CSS,
				JS:         site.JS,
				ChangeType: models.ChangeRollback,
			}
			if err := tx.Create(&snapshot).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Website{}).Where("id = ?", site.ID).Updates(map[string]interface{}{
			"html":       target.HTML,
			"css":        target.CSS,
			"js":         target.JS,
			"updated_at": now,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}
	site.HTML = target.HTML
	site.CSS = target.CSS
	site.JS = target.JS
	site.UpdatedAt = now
	return site, &target, nil
}

// CloneFrom copies another user's active site over the caller's active
// site, preserving the overwritten state in history.
func (s *ProjectService) CloneFrom(userID, sourceUserID uint) (*models.Website, error) {
	var source models.Website
	if err := s.db.Where("user_id = ? AND is_active = ?", sourceUserID, true).First(&source).Error; err != nil {
		return nil, ErrProjectNotFound
	}
	site, err := s.Active(userID)
	if err != nil {
		return nil, err
	}
	newCode := code.Code{HTML: source.HTML, CSS: source.CSS, JS: source.JS}
	if err := s.CommitChange(site, newCode, models.ChangeManual, nil); err != nil {
		return nil, err
	}
	return site, nil
}

// HistoryCount reports how many snapshots a project has accumulated.
func (s *ProjectService) HistoryCount(websiteID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.CodeHistory{}).Where("website_id = ?", websiteID).Count(&count).Error
	return count, err
}

// PublicSites lists the gallery: all public projects with their owners.
func (s *ProjectService) PublicSites(limit int) ([]models.Website, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var sites []models.Website
	err := s.db.Where("is_public = ?", true).Order("updated_at desc").Limit(limit).Find(&sites).Error
	return sites, err
}
