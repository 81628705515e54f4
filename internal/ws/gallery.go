package ws

import (
	"sync"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/metrics"
	"github.com/rs/zerolog/log"
)

// GalleryScheduler coalesces public preview updates into batched
// multicasts. Rapid edits from one user collapse to their latest state
// (last-write-wins); one timer per workshop fires at most once per
// interval.
type GalleryScheduler struct {
	mu       sync.Mutex
	reg      *Registry
	interval time.Duration
	pending  map[uint]map[uint]interface{}
	armed    map[uint]bool
}

func NewGalleryScheduler(reg *Registry, interval time.Duration) *GalleryScheduler {
	return &GalleryScheduler{
		reg:      reg,
		interval: interval,
		pending:  make(map[uint]map[uint]interface{}),
		armed:    make(map[uint]bool),
	}
}

// Queue records a user's latest preview and arms the workshop's flush
// timer if it is idle.
func (g *GalleryScheduler) Queue(workshopID, userID uint, preview interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending[workshopID] == nil {
		g.pending[workshopID] = make(map[uint]interface{})
	}
	g.pending[workshopID][userID] = preview
	if !g.armed[workshopID] {
		g.armed[workshopID] = true
		time.AfterFunc(g.interval, func() { g.flush(workshopID) })
	}
}

func (g *GalleryScheduler) flush(workshopID uint) {
	g.mu.Lock()
	batch := g.pending[workshopID]
	delete(g.pending, workshopID)
	g.armed[workshopID] = false
	g.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	// Keyed by user id so consumers can replace a single preview card.
	g.reg.Broadcast("gallery_batch_update", map[string]interface{}{"updates": batch}, workshopID, 0)
	metrics.GalleryBatchesTotal.Inc()
	log.Debug().Uint("workshop_id", workshopID).Int("updates", len(batch)).Msg("gallery batch flushed")
}
