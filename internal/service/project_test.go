package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/code"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/db"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{WorkshopID: 1, Username: username, PasswordHash: "x", SessionToken: "tok-" + username}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func activeCount(t *testing.T, gdb *gorm.DB, userID uint) int64 {
	t.Helper()
	var n int64
	gdb.Model(&models.Website{}).Where("user_id = ? AND is_active = ?", userID, true).Count(&n)
	return n
}

func TestCreateFirstProjectIsPublic(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	svc := NewProjectService(gdb)

	first, err := svc.Create(user.ID, "Erste", "default")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !first.IsPublic {
		t.Error("first project not public by default")
	}
	if !first.IsActive {
		t.Error("first project not active")
	}
	if first.Slug == "" {
		t.Error("slug not generated")
	}

	second, err := svc.Create(user.ID, "Zweite", "portfolio")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if second.IsPublic {
		t.Error("second project public by default")
	}
	if n := activeCount(t, gdb, user.ID); n != 1 {
		t.Errorf("active projects = %d, want 1", n)
	}

	var count int64
	gdb.Model(&models.CodeHistory{}).Count(&count)
	if count != 2 {
		t.Errorf("history rows = %d, want 2 (one initial snapshot each)", count)
	}
}

func TestCreateUsesTemplate(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	svc := NewProjectService(gdb)

	site, err := svc.Create(user.ID, "Party", "party")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.Contains(site.HTML, "eingeladen") {
		t.Errorf("party template not applied: %q", site.HTML)
	}
	fallback, _ := svc.Create(user.ID, "Unbekannt", "no-such-template")
	if !strings.Contains(fallback.HTML, "Willkommen") {
		t.Errorf("unknown template id did not fall back to default: %q", fallback.HTML)
	}
}

func TestSwitchProject(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	svc := NewProjectService(gdb)
	first, _ := svc.Create(user.ID, "A", "default")
	second, _ := svc.Create(user.ID, "B", "default")

	got, err := svc.Switch(user.ID, first.ID)
	if err != nil {
		t.Fatalf("Switch() error = %v", err)
	}
	if got.ID != first.ID || !got.IsActive {
		t.Errorf("Switch() = %+v", got)
	}
	if n := activeCount(t, gdb, user.ID); n != 1 {
		t.Errorf("active projects = %d, want 1", n)
	}
	var fresh models.Website
	gdb.First(&fresh, second.ID)
	if fresh.IsActive {
		t.Error("previous active project still active")
	}
}

func TestSwitchForeignProject(t *testing.T) {
	gdb := testDB(t)
	anna := seedUser(t, gdb, "anna")
	ben := seedUser(t, gdb, "ben")
	svc := NewProjectService(gdb)
	site, _ := svc.Create(ben.ID, "Bens", "default")

	if _, err := svc.Switch(anna.ID, site.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Switch() on foreign project error = %v, want ErrProjectNotFound", err)
	}
}

func TestManualUpdateRejectsInvalidCode(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	svc := NewProjectService(gdb)
	site, _ := svc.Create(user.ID, "A", "default")

	bad := "eval('1')"
	_, err := svc.ManualUpdate(user.ID, site.ID, nil, nil, &bad)
	var verr *code.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("ManualUpdate() error = %v, want ValidationError", err)
	}
	if len(verr.Reasons) == 0 {
		t.Error("validation error without reasons")
	}

	var fresh models.Website
	gdb.First(&fresh, site.ID)
	if fresh.JS == bad {
		t.Error("rejected code was committed")
	}
}

func TestManualUpdateCommitsWithSnapshot(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	svc := NewProjectService(gdb)
	site, _ := svc.Create(user.ID, "A", "default")
	before := site.HTML

	newHTML := "<h2>Geändert</h2>"
	got, err := svc.ManualUpdate(user.ID, site.ID, &newHTML, nil, nil)
	if err != nil {
		t.Fatalf("ManualUpdate() error = %v", err)
	}
	if got.HTML != newHTML {
		t.Errorf("html = %q", got.HTML)
	}

	var hist models.CodeHistory
	gdb.Where("website_id = ?", site.ID).Order("id desc").First(&hist)
	if hist.ChangeType != models.ChangeManual {
		t.Errorf("ChangeType = %s, want manual", hist.ChangeType)
	}
	if hist.HTML != before {
		t.Errorf("snapshot html = %q, want pre-mutation %q", hist.HTML, before)
	}
}

func TestRollback(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	svc := NewProjectService(gdb)
	site, _ := svc.Create(user.ID, "A", "default")

	v1 := "<p>v1</p>"
	v2 := "<p>v2</p>"
	if _, err := svc.ManualUpdate(user.ID, site.ID, &v1, nil, nil); err != nil {
		t.Fatalf("update v1: %v", err)
	}
	if _, err := svc.ManualUpdate(user.ID, site.ID, &v2, nil, nil); err != nil {
		t.Fatalf("update v2: %v", err)
	}

	got, target, err := svc.Rollback(user.ID, site.ID, 1)
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if got.HTML != v1 {
		t.Errorf("rolled-back html = %q, want %q", got.HTML, v1)
	}
	if target.HTML != v1 {
		t.Errorf("target snapshot html = %q", target.HTML)
	}

	// The rollback wrote one snapshot of the overwritten state, tagged so
	// later rollbacks skip it.
	var rollbackRows int64
	gdb.Model(&models.CodeHistory{}).Where("website_id = ? AND change_type = ?", site.ID, models.ChangeRollback).Count(&rollbackRows)
	if rollbackRows != 1 {
		t.Errorf("rollback-tagged rows = %d, want 1", rollbackRows)
	}
}

func TestRollbackSkipsRollbackEntries(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	svc := NewProjectService(gdb)
	site, _ := svc.Create(user.ID, "A", "default")

	v1 := "<p>v1</p>"
	if _, err := svc.ManualUpdate(user.ID, site.ID, &v1, nil, nil); err != nil {
		t.Fatalf("update v1: %v", err)
	}
	if _, _, err := svc.Rollback(user.ID, site.ID, 1); err != nil {
		t.Fatalf("first rollback: %v", err)
	}

	// A second rollback must target the snapshot before v1, not the
	// rollback snapshot holding v1 itself.
	got, _, err := svc.Rollback(user.ID, site.ID, 1)
	if err != nil {
		t.Fatalf("second rollback: %v", err)
	}
	if got.HTML == v1 {
		t.Error("second rollback restored the rollback snapshot")
	}
}

func TestRollbackNoHistory(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	site := models.Website{UserID: user.ID, Name: "leer", Slug: "leer1", IsActive: true}
	if err := gdb.Create(&site).Error; err != nil {
		t.Fatalf("seed site: %v", err)
	}
	svc := NewProjectService(gdb)
	if _, _, err := svc.Rollback(user.ID, site.ID, 1); !errors.Is(err, ErrNoHistory) {
		t.Errorf("Rollback() error = %v, want ErrNoHistory", err)
	}
}

func TestTogglePublic(t *testing.T) {
	gdb := testDB(t)
	user := seedUser(t, gdb, "anna")
	svc := NewProjectService(gdb)
	site, _ := svc.Create(user.ID, "A", "default")
	wasPublic := site.IsPublic

	got, err := svc.TogglePublic(user.ID, site.ID)
	if err != nil {
		t.Fatalf("TogglePublic() error = %v", err)
	}
	if got.IsPublic == wasPublic {
		t.Error("TogglePublic() did not flip visibility")
	}
}

func TestCloneFrom(t *testing.T) {
	gdb := testDB(t)
	anna := seedUser(t, gdb, "anna")
	ben := seedUser(t, gdb, "ben")
	svc := NewProjectService(gdb)
	bensSite, _ := svc.Create(ben.ID, "Bens", "party")
	if _, err := svc.Create(anna.ID, "Annas", "default"); err != nil {
		t.Fatalf("create target: %v", err)
	}

	got, err := svc.CloneFrom(anna.ID, ben.ID)
	if err != nil {
		t.Fatalf("CloneFrom() error = %v", err)
	}
	if got.HTML != bensSite.HTML {
		t.Error("clone did not copy source html")
	}
	if got.UserID != anna.ID {
		t.Error("clone changed ownership")
	}
}

func TestLikeToggle(t *testing.T) {
	gdb := testDB(t)
	anna := seedUser(t, gdb, "anna")
	ben := seedUser(t, gdb, "ben")
	psvc := NewProjectService(gdb)
	site, _ := psvc.Create(ben.ID, "Bens", "default")
	likes := NewLikeService(gdb)

	liked, count, _, err := likes.Toggle(anna.ID, site.ID)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !liked || count != 1 {
		t.Errorf("Toggle() = (%v, %d), want (true, 1)", liked, count)
	}

	liked, count, _, err = likes.Toggle(anna.ID, site.ID)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if liked || count != 0 {
		t.Errorf("second Toggle() = (%v, %d), want (false, 0)", liked, count)
	}

	if _, _, _, err := likes.Toggle(anna.ID, 9999); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Toggle() on missing site error = %v, want ErrProjectNotFound", err)
	}
}
