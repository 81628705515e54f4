package service

import (
	"errors"
	"strings"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/auth"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Signup registers a participant in a workshop and issues their session
// token. The first project is created separately by the caller.
func (s *UserService) Signup(workshopID uint, username, password, displayName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	var count int64
	if err := s.db.Model(&models.User{}).Where("workshop_id = ? AND username = ?", workshopID, username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}
	user := models.User{
		WorkshopID:   workshopID,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		SessionToken: token,
		Role:         models.RoleParticipant,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Login verifies credentials and rotates the session token.
func (s *UserService) Login(workshopID uint, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("workshop_id = ? AND username = ?", workshopID, strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"session_token": token, "last_seen": time.Now()}
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	user.SessionToken = token
	return &user, nil
}

// Logout invalidates the session token.
func (s *UserService) Logout(token string) error {
	return s.db.Model(&models.User{}).Where("session_token = ?", token).Update("session_token", gorm.Expr("NULL")).Error
}

// LearnConcepts merges newly introduced concepts into the user's list.
func (s *UserService) LearnConcepts(user *models.User, concepts []string) error {
	if len(concepts) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(user.LearnedConcepts))
	merged := user.LearnedConcepts
	for _, c := range user.LearnedConcepts {
		seen[c] = struct{}{}
	}
	added := false
	for _, c := range concepts {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		merged = append(merged, c)
		added = true
	}
	if !added {
		return nil
	}
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Update("learned_concepts", merged).Error; err != nil {
		return err
	}
	user.LearnedConcepts = merged
	return nil
}

// ImagesForContext lists the user's uploaded images for a project as
// advisory AI context. The upload pipeline itself lives outside this
// service.
func (s *UserService) ImagesForContext(userID, websiteID uint) ([]string, error) {
	var images []models.Image
	err := s.db.Where("user_id = ? AND (website_id = ? OR website_id = 0)", userID, websiteID).
		Order("created_at desc").Limit(20).Find(&images).Error
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
	}
	return urls, nil
}

// RecordChat appends one chat turn to the history the LLM context window
// is built from.
func (s *UserService) RecordChat(userID, websiteID uint, role models.MessageRole, content string) error {
	return s.db.Create(&models.ChatMessage{UserID: userID, WebsiteID: websiteID, Role: role, Content: content}).Error
}

// RecentChat returns the last n chat turns in chronological order.
func (s *UserService) RecentChat(userID, websiteID uint, n int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.Where("user_id = ? AND website_id = ?", userID, websiteID).
		Order("id desc").Limit(n).Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
