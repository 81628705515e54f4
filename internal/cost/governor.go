package cost

import (
	"fmt"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/metrics"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Governor gates paid LLM calls behind a hard per-user cost ceiling and a
// rolling per-minute rate ceiling. Spend is read from and written to the
// llm_calls ledger, so limits survive restarts.
//
// The check in CanProceed and the write in RecordCall are not serialized
// against each other: two in-flight requests from the same user can both
// pass the check and briefly push the total past the ceiling by one call.
// That over-spend is accepted rather than paying for a row lock on every
// request.
type Governor struct {
	db           *gorm.DB
	maxCost      float64
	maxPerMinute int
}

func NewGovernor(db *gorm.DB, maxCost float64, maxPerMinute int) *Governor {
	return &Governor{db: db, maxCost: maxCost, maxPerMinute: maxPerMinute}
}

// CanProceed reports whether the user may make another paid call and, if
// not, a user-facing reason distinguishing the cost from the rate ceiling.
func (g *Governor) CanProceed(userID uint) (bool, string) {
	total, err := g.TotalCost(userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("governor cost query")
		return false, "Kostenprüfung fehlgeschlagen"
	}
	if total >= g.maxCost {
		return false, fmt.Sprintf("Kostenlimit erreicht (€%.2f)", g.maxCost)
	}
	recent, err := g.RecentCalls(userID, time.Minute)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("governor rate query")
		return false, "Kostenprüfung fehlgeschlagen"
	}
	if recent >= int64(g.maxPerMinute) {
		return false, fmt.Sprintf("Zu viele Anfragen (max. %d/Minute)", g.maxPerMinute)
	}
	return true, ""
}

func (g *Governor) TotalCost(userID uint) (float64, error) {
	var total *float64
	err := g.db.Model(&models.LLMCall{}).
		Select("SUM(cost)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil || total == nil {
		return 0, err
	}
	return *total, nil
}

func (g *Governor) RecentCalls(userID uint, window time.Duration) (int64, error) {
	var count int64
	err := g.db.Model(&models.LLMCall{}).
		Where("user_id = ? AND created_at >= ?", userID, time.Now().Add(-window)).
		Count(&count).Error
	return count, err
}

// RecordCall appends the authoritative usage row. It is the only writer
// of spend and runs synchronously before any user-visible success
// response.
func (g *Governor) RecordCall(call *models.LLMCall) error {
	call.TotalTokens = call.PromptTokens + call.CompletionTokens
	if err := g.db.Create(call).Error; err != nil {
		return err
	}
	metrics.AICallsTotal.WithLabelValues(string(call.ResponseType)).Inc()
	metrics.AICostTotal.Add(call.Cost)
	log.Info().Uint("user_id", call.UserID).Float64("cost", call.Cost).Int("tokens", call.TotalTokens).Msg("recorded llm call")
	return nil
}

type Stats struct {
	TotalCost      float64 `json:"total_cost"`
	TotalCalls     int64   `json:"total_calls"`
	TotalTokens    int64   `json:"total_tokens"`
	CostLimit      float64 `json:"cost_limit"`
	CostPercentage float64 `json:"cost_percentage"`
}

func (g *Governor) UserStats(userID uint) (Stats, error) {
	s := Stats{CostLimit: g.maxCost}
	var err error
	if s.TotalCost, err = g.TotalCost(userID); err != nil {
		return s, err
	}
	if err = g.db.Model(&models.LLMCall{}).Where("user_id = ?", userID).Count(&s.TotalCalls).Error; err != nil {
		return s, err
	}
	var tokens *int64
	if err = g.db.Model(&models.LLMCall{}).Select("SUM(total_tokens)").Where("user_id = ?", userID).Scan(&tokens).Error; err != nil {
		return s, err
	}
	if tokens != nil {
		s.TotalTokens = *tokens
	}
	if g.maxCost > 0 {
		s.CostPercentage = s.TotalCost / g.maxCost * 100
	}
	return s, nil
}
