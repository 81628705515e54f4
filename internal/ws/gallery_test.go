package ws

import (
	"encoding/json"
	"testing"
	"time"
)

func waitFrame(t *testing.T, c *Client, timeout time.Duration) map[string]interface{} {
	t.Helper()
	select {
	case b := <-c.send:
		var m map[string]interface{}
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return m
	case <-time.After(timeout):
		t.Fatal("no frame before timeout")
		return nil
	}
}

func TestGallerySchedulerBatchesRapidUpdates(t *testing.T) {
	r := NewRegistry()
	viewer := newTestClient(2, 1)
	r.Register(viewer)

	g := NewGalleryScheduler(r, 20*time.Millisecond)
	g.Queue(1, 1, map[string]string{"name": "v1"})
	g.Queue(1, 1, map[string]string{"name": "v2"})

	m := waitFrame(t, viewer, 200*time.Millisecond)
	if m["type"] != "gallery_batch_update" {
		t.Fatalf("type = %v, want gallery_batch_update", m["type"])
	}
	updates, ok := m["updates"].(map[string]interface{})
	if !ok || len(updates) != 1 {
		t.Fatalf("updates = %v, want one entry keyed by user id", m["updates"])
	}
	entry, ok := updates["1"].(map[string]interface{})
	if !ok || entry["name"] != "v2" {
		t.Errorf("batched entry = %v, want last write v2 under key 1", updates)
	}

	// No second flush without new queue activity.
	select {
	case b := <-viewer.send:
		t.Errorf("unexpected extra frame: %s", b)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestGallerySchedulerSeparateUsers(t *testing.T) {
	r := NewRegistry()
	viewer := newTestClient(9, 1)
	r.Register(viewer)

	g := NewGalleryScheduler(r, 20*time.Millisecond)
	g.Queue(1, 1, map[string]string{"name": "anna"})
	g.Queue(1, 2, map[string]string{"name": "ben"})

	m := waitFrame(t, viewer, 200*time.Millisecond)
	updates := m["updates"].(map[string]interface{})
	if len(updates) != 2 {
		t.Errorf("updates = %d entries, want 2 (one per user)", len(updates))
	}
	for _, key := range []string{"1", "2"} {
		if _, ok := updates[key]; !ok {
			t.Errorf("no entry for user %s: %v", key, updates)
		}
	}
}

func TestGallerySchedulerRearms(t *testing.T) {
	r := NewRegistry()
	viewer := newTestClient(9, 1)
	r.Register(viewer)

	g := NewGalleryScheduler(r, 20*time.Millisecond)
	g.Queue(1, 1, map[string]string{"name": "first"})
	first := waitFrame(t, viewer, 200*time.Millisecond)
	if first["type"] != "gallery_batch_update" {
		t.Fatalf("first frame = %v", first)
	}

	g.Queue(1, 1, map[string]string{"name": "second"})
	second := waitFrame(t, viewer, 200*time.Millisecond)
	entry := second["updates"].(map[string]interface{})["1"].(map[string]interface{})
	if entry["name"] != "second" {
		t.Errorf("second batch entry = %v", entry)
	}
}

func TestGallerySchedulerWorkshopScoped(t *testing.T) {
	r := NewRegistry()
	inWorkshop := newTestClient(2, 1)
	outside := newTestClient(3, 2)
	r.Register(inWorkshop)
	r.Register(outside)

	g := NewGalleryScheduler(r, 20*time.Millisecond)
	g.Queue(1, 1, map[string]string{"name": "x"})

	waitFrame(t, inWorkshop, 200*time.Millisecond)
	select {
	case b := <-outside.send:
		t.Errorf("other workshop received batch: %s", b)
	case <-time.After(60 * time.Millisecond):
	}
}
