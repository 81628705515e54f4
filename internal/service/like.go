package service

import (
	"errors"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"gorm.io/gorm"
)

type LikeService struct {
	db *gorm.DB
}

func NewLikeService(db *gorm.DB) *LikeService {
	return &LikeService{db: db}
}

// Toggle flips the user's like on a website and returns the new state
// plus the updated total.
func (s *LikeService) Toggle(userID, websiteID uint) (liked bool, count int64, site *models.Website, err error) {
	var ws models.Website
	if err = s.db.First(&ws, websiteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrProjectNotFound
		}
		return
	}
	site = &ws

	var existing models.WebsiteLike
	findErr := s.db.Where("website_id = ? AND user_id = ?", websiteID, userID).First(&existing).Error
	switch {
	case findErr == nil:
		if err = s.db.Delete(&existing).Error; err != nil {
			return
		}
		liked = false
	case errors.Is(findErr, gorm.ErrRecordNotFound):
		if err = s.db.Create(&models.WebsiteLike{WebsiteID: websiteID, UserID: userID}).Error; err != nil {
			return
		}
		liked = true
	default:
		err = findErr
		return
	}

	err = s.db.Model(&models.WebsiteLike{}).Where("website_id = ?", websiteID).Count(&count).Error
	return
}

// Count returns the like total for one website.
func (s *LikeService) Count(websiteID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.WebsiteLike{}).Where("website_id = ?", websiteID).Count(&count).Error
	return count, err
}
