package service

import (
	"errors"
	"testing"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/auth"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"gorm.io/gorm"
)

func TestSignupAndLogin(t *testing.T) {
	gdb := testDB(t)
	svc := NewUserService(gdb)

	user, err := svc.Signup(1, "anna", "geheim123", "Anna")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if user.SessionToken == "" {
		t.Error("no session token issued")
	}
	if user.PasswordHash == "geheim123" {
		t.Error("password stored in plaintext")
	}
	if user.Role != models.RoleParticipant {
		t.Errorf("Role = %s, want participant", user.Role)
	}

	if _, err := svc.Signup(1, "anna", "anders", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate Signup() error = %v, want ErrUsernameTaken", err)
	}
	// Same name in another workshop is fine.
	if _, err := svc.Signup(2, "anna", "anders", ""); err != nil {
		t.Errorf("Signup() in second workshop error = %v", err)
	}

	logged, err := svc.Login(1, "anna", "geheim123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if logged.SessionToken == user.SessionToken {
		t.Error("Login() did not rotate the session token")
	}

	if _, err := svc.Login(1, "anna", "falsch"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(1, "niemand", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogout(t *testing.T) {
	gdb := testDB(t)
	svc := NewUserService(gdb)
	user, err := svc.Signup(1, "anna", "geheim123", "")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if err := svc.Logout(user.SessionToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := auth.ResolveSession(gdb, user.SessionToken); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("session still resolvable after logout: %v", err)
	}
}

func TestLearnConcepts(t *testing.T) {
	gdb := testDB(t)
	svc := NewUserService(gdb)
	user, _ := svc.Signup(1, "anna", "geheim123", "")

	if err := svc.LearnConcepts(user, []string{"flexbox", "farben"}); err != nil {
		t.Fatalf("LearnConcepts() error = %v", err)
	}
	if err := svc.LearnConcepts(user, []string{"flexbox", "grid"}); err != nil {
		t.Fatalf("LearnConcepts() error = %v", err)
	}

	var fresh models.User
	gdb.First(&fresh, user.ID)
	if len(fresh.LearnedConcepts) != 3 {
		t.Errorf("LearnedConcepts = %v, want 3 unique entries", fresh.LearnedConcepts)
	}
	if err := svc.LearnConcepts(user, nil); err != nil {
		t.Errorf("LearnConcepts(nil) error = %v", err)
	}
}

func TestRecentChatWindow(t *testing.T) {
	gdb := testDB(t)
	svc := NewUserService(gdb)
	user, _ := svc.Signup(1, "anna", "geheim123", "")

	for i := 0; i < 8; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if err := svc.RecordChat(user.ID, 1, role, string(rune('a'+i))); err != nil {
			t.Fatalf("RecordChat() error = %v", err)
		}
	}

	msgs, err := svc.RecentChat(user.ID, 1, 5)
	if err != nil {
		t.Fatalf("RecentChat() error = %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("RecentChat() = %d messages, want 5", len(msgs))
	}
	// Chronological order, ending with the newest.
	if msgs[0].Content != "d" || msgs[4].Content != "h" {
		t.Errorf("window = %q..%q, want d..h", msgs[0].Content, msgs[4].Content)
	}
}
