package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ChangeType tags a CodeHistory snapshot with the reason it was taken.
type ChangeType string

const (
	ChangeManual    ChangeType = "manual"
	ChangeAIUpdate  ChangeType = "ai_update"
	ChangeAIRewrite ChangeType = "ai_rewrite"
	ChangeRollback  ChangeType = "rollback"
)

// ResponseType is the closed set of structured LLM response shapes.
// Anything the model returns outside this set degrades to ResponseChat.
type ResponseType string

const (
	ResponseChat      ResponseType = "chat"
	ResponseUpdate    ResponseType = "update"
	ResponseUpdateAll ResponseType = "update_all"
	ResponseRewrite   ResponseType = "rewrite"
)

func ParseResponseType(s string) ResponseType {
	switch ResponseType(s) {
	case ResponseUpdate, ResponseUpdateAll, ResponseRewrite:
		return ResponseType(s)
	default:
		return ResponseChat
	}
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleParticipant UserRole = "participant"
)

// StringList stores a JSON string array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported source type for StringList")
	}
}

type Workshop struct {
	ID             uint      `gorm:"primaryKey"`
	Name           string    `gorm:"size:255;not null"`
	Date           time.Time `gorm:"not null"`
	PasswordHash   string    `gorm:"size:255"`
	MaxCostPerUser float64   `gorm:"type:decimal(10,2);default:1.00"`
	IsActive       bool      `gorm:"default:false"`
	AdminUserID    *uint
	CreatedAt      time.Time
}

type User struct {
	ID              uint       `gorm:"primaryKey"`
	WorkshopID      uint       `gorm:"uniqueIndex:idx_workshop_username"`
	Username        string     `gorm:"uniqueIndex:idx_workshop_username;size:100;not null"`
	DisplayName     string     `gorm:"size:100"`
	PasswordHash    string     `gorm:"size:255;not null"`
	SessionToken    string     `gorm:"uniqueIndex;size:128"`
	Role            UserRole   `gorm:"size:16;default:participant"`
	LearnedConcepts StringList `gorm:"type:text"`
	JoinedAt        time.Time  `gorm:"autoCreateTime"`
	LastSeen        time.Time  `gorm:"autoCreateTime"`
}

type Website struct {
	ID              uint       `gorm:"primaryKey"`
	UserID          uint       `gorm:"index;not null"`
	Name            string     `gorm:"size:255;default:Meine Website"`
	Slug            string     `gorm:"uniqueIndex;size:64"`
	HTML            string     `gorm:"type:text"`
	CSS             string     `gorm:"type:text"`
	JS              string     `gorm:"type:text"`
	Description     string     `gorm:"type:text"`
	Tags            StringList `gorm:"type:text"`
	IsActive        bool       `gorm:"default:true"`
	IsPublic        bool       `gorm:"default:false"`
	IsCollaborative bool       `gorm:"default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CodeHistory is an append-only snapshot of the code as it was before a
// mutation. Rollback-tagged rows are skipped when searching for the
// previous real state, so rollbacks never chain onto each other.
type CodeHistory struct {
	ID         uint       `gorm:"primaryKey"`
	WebsiteID  uint       `gorm:"index:idx_history_website;not null"`
	HTML       string     `gorm:"type:text;not null"`
	CSS        string     `gorm:"type:text;not null"`
	JS         string     `gorm:"type:text;not null"`
	ChangeType ChangeType `gorm:"size:16;not null"`
	LLMCallID  *uint
	CreatedAt  time.Time `gorm:"index"`
}

// LLMCall is the append-only usage ledger; one row per AI turn.
// ParentCallID links a disambiguation follow-up to the call that caused it.
type LLMCall struct {
	ID               uint         `gorm:"primaryKey"`
	UserID           uint         `gorm:"index;not null"`
	WebsiteID        uint         `gorm:"index"`
	Prompt           string       `gorm:"type:text;not null"`
	ResponseType     ResponseType `gorm:"size:16"`
	ResponseData     string       `gorm:"type:text"`
	Model            string       `gorm:"size:50"`
	PromptTokens     int          `gorm:"not null"`
	CompletionTokens int          `gorm:"not null"`
	TotalTokens      int          `gorm:"not null"`
	Cost             float64      `gorm:"type:decimal(10,6);not null"`
	DurationMs       int
	ErrorMessage     string `gorm:"type:text"`
	ParentCallID     *uint  `gorm:"index"`
	CreatedAt        time.Time `gorm:"index"`
}

type WebsiteLike struct {
	ID        uint `gorm:"primaryKey"`
	WebsiteID uint `gorm:"uniqueIndex:idx_like_website_user;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_like_website_user;not null"`
	CreatedAt time.Time
}

type ChatMessage struct {
	ID        uint        `gorm:"primaryKey"`
	UserID    uint        `gorm:"index;not null"`
	WebsiteID uint        `gorm:"index"`
	Role      MessageRole `gorm:"size:16;not null"`
	Content   string      `gorm:"type:text;not null"`
	CreatedAt time.Time
}

// Image rows are written by the external upload pipeline; this service
// only reads them as advisory context for the AI orchestrator.
type Image struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"index;not null"`
	WebsiteID uint   `gorm:"index"`
	Filename  string `gorm:"size:255;not null"`
	URL       string `gorm:"size:512;not null"`
	CreatedAt time.Time
}
