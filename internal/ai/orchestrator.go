package ai

import (
	"context"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/code"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/cost"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/service"
	"github.com/rs/zerolog/log"
)

// Sender delivers one message to one connected user. Delivery is
// best-effort; a gone user is not an error here.
type Sender interface {
	SendTo(userID uint, msgType string, payload interface{})
}

// GalleryQueuer batches public preview updates for later multicast.
type GalleryQueuer interface {
	Queue(workshopID, userID uint, preview interface{})
}

type chatPayload struct {
	Message             string       `json:"message"`
	Explanation         string       `json:"explanation,omitempty"`
	FollowUpSuggestions []Suggestion `json:"follow_up_suggestions,omitempty"`
	NewConcepts         []string     `json:"new_concepts,omitempty"`
}

type codeUpdatePayload struct {
	HTML        string `json:"html"`
	CSS         string `json:"css"`
	JS          string `json:"js"`
	ChangeType  string `json:"changeType"`
	Description string `json:"description,omitempty"`
}

type costUpdatePayload struct {
	TotalCost      float64 `json:"totalCost"`
	LastCallCost   float64 `json:"lastCallCost"`
	CostPercentage float64 `json:"costPercentage"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// GalleryPreview is the per-project payload batched into
// gallery_batch_update multicasts.
type GalleryPreview struct {
	ProjectID       uint              `json:"project_id"`
	HTML            string            `json:"html"`
	CSS             string            `json:"css"`
	JS              string            `json:"js"`
	Name            string            `json:"name"`
	Slug            string            `json:"slug"`
	Description     string            `json:"description"`
	Tags            models.StringList `json:"tags"`
	Username        string            `json:"username"`
	UserDisplayName string            `json:"user_display_name"`
	IsCollaborative bool              `json:"is_collaborative"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Orchestrator runs the full AI request pipeline for one prompt: budget
// check, LLM call, ledger write, patching, persistence and the ordered
// message emissions back to the user.
type Orchestrator struct {
	llm      Client
	gov      *cost.Governor
	sender   Sender
	gallery  GalleryQueuer
	projects *service.ProjectService
	users    *service.UserService
}

func NewOrchestrator(llm Client, gov *cost.Governor, sender Sender, gallery GalleryQueuer, projects *service.ProjectService, users *service.UserService) *Orchestrator {
	return &Orchestrator{llm: llm, gov: gov, sender: sender, gallery: gallery, projects: projects, users: users}
}

func (o *Orchestrator) sendError(userID uint, msg string) {
	o.sender.SendTo(userID, "error", errorPayload{Message: msg})
}

// HandleRequest processes one ai_request prompt. The target project is
// pinned at entry; a racing switch_project does not redirect in-flight
// work. Any panic in the pipeline is converted to a user-facing error.
func (o *Orchestrator) HandleRequest(ctx context.Context, user *models.User, prompt string, projectID uint) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint("user_id", user.ID).Msg("ai request panicked")
			o.sendError(user.ID, "Fehler bei der KI-Anfrage")
		}
	}()

	if ok, reason := o.gov.CanProceed(user.ID); !ok {
		o.sendError(user.ID, reason)
		return
	}

	site, err := o.projects.Resolve(user.ID, projectID)
	if err != nil {
		o.sendError(user.ID, "Projekt nicht gefunden")
		return
	}
	current := code.Code{HTML: site.HTML, CSS: site.CSS, JS: site.JS}

	history, err := o.users.RecentChat(user.ID, site.ID, historyWindow)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", user.ID).Msg("chat history load failed, continuing without")
	}
	images, err := o.users.ImagesForContext(user.ID, site.ID)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", user.ID).Msg("image context load failed, continuing without")
	}

	res, err := o.llm.Generate(ctx, GenerateInput{
		Prompt:          prompt,
		CurrentCode:     current,
		History:         history,
		LearnedConcepts: user.LearnedConcepts,
		Images:          images,
	})
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("llm generate failed")
		if rerr := o.gov.RecordCall(&models.LLMCall{
			UserID:       user.ID,
			WebsiteID:    site.ID,
			Prompt:       prompt,
			ResponseType: models.ResponseChat,
			Model:        "",
			ErrorMessage: err.Error(),
		}); rerr != nil {
			log.Error().Err(rerr).Msg("error ledger write failed")
		}
		o.sendError(user.ID, "Fehler bei der KI-Anfrage")
		return
	}

	call := o.buildCall(user.ID, site.ID, prompt, res, nil)
	if err := o.gov.RecordCall(call); err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("ledger write failed")
		o.sendError(user.ID, "Fehler bei der KI-Anfrage")
		return
	}
	lastCost := call.Cost

	if err := o.users.RecordChat(user.ID, site.ID, models.RoleUser, prompt); err != nil {
		log.Warn().Err(err).Msg("user chat persist failed")
	}
	if err := o.users.RecordChat(user.ID, site.ID, models.RoleAssistant, res.Data.ChatMessage); err != nil {
		log.Warn().Err(err).Msg("assistant chat persist failed")
	}
	if err := o.users.LearnConcepts(user, res.Data.NewConcepts); err != nil {
		log.Warn().Err(err).Msg("concept update failed")
	}

	o.sendChat(user.ID, res.Data)

	data := res.Data
	rt := call.ResponseType
	if rt == models.ResponseUpdate {
		if edit, matches := firstAmbiguous(data.Updates, current); edit != nil {
			child, ok := o.disambiguate(ctx, user, site, prompt, *edit, matches, current, call.ID)
			if !ok {
				o.sendCostUpdate(user.ID, lastCost)
				return
			}
			data = child.res.Data
			rt = models.ParseResponseType(data.ResponseType)
			call = child.call
			lastCost += child.call.Cost
			if err := o.users.RecordChat(user.ID, site.ID, models.RoleAssistant, data.ChatMessage); err != nil {
				log.Warn().Err(err).Msg("assistant chat persist failed")
			}
			o.sendChat(user.ID, data)
		}
	}

	if rt != models.ResponseChat {
		o.applyChanges(user, site, current, data, rt, call.ID)
	}
	o.sendCostUpdate(user.ID, lastCost)
}

func (o *Orchestrator) buildCall(userID, websiteID uint, prompt string, res *Result, parentID *uint) *models.LLMCall {
	return &models.LLMCall{
		UserID:           userID,
		WebsiteID:        websiteID,
		Prompt:           prompt,
		ResponseType:     models.ParseResponseType(res.Data.ResponseType),
		ResponseData:     res.Raw,
		Model:            res.Model,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		Cost:             o.llm.Cost(res.Usage),
		DurationMs:       int(res.Duration.Milliseconds()),
		ParentCallID:     parentID,
	}
}

// firstAmbiguous returns the first plain-update edit whose old_str occurs
// more than once in its target file, along with all its occurrences.
func firstAmbiguous(edits []code.Edit, current code.Code) (*code.Edit, []Match) {
	for i := range edits {
		var inFile []Match
		for _, m := range FindMatches(edits[i].OldStr, current) {
			if m.File == edits[i].File {
				inFile = append(inFile, m)
			}
		}
		if len(inFile) > 1 {
			return &edits[i], inFile
		}
	}
	return nil, nil
}

type childResult struct {
	res  *Result
	call *models.LLMCall
}

// disambiguate runs the follow-up call that resolves an ambiguous edit.
// It spends budget, so the governor is consulted again first; on denial
// the user learns why nothing was changed.
func (o *Orchestrator) disambiguate(ctx context.Context, user *models.User, site *models.Website, prompt string, edit code.Edit, matches []Match, current code.Code, parentID uint) (*childResult, bool) {
	if ok, reason := o.gov.CanProceed(user.ID); !ok {
		o.sendError(user.ID, "Mehrere Treffer gefunden, aber "+reason)
		return nil, false
	}

	res, err := o.llm.Disambiguate(ctx, DisambiguateInput{
		OriginalPrompt: prompt,
		OldStr:         edit.OldStr,
		Matches:        matches,
		CurrentCode:    current,
	})
	if err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("llm disambiguate failed")
		o.sendError(user.ID, "Fehler bei der Klärung der Änderung")
		return nil, false
	}

	call := o.buildCall(user.ID, site.ID, prompt, res, &parentID)
	if err := o.gov.RecordCall(call); err != nil {
		log.Error().Err(err).Uint("user_id", user.ID).Msg("ledger write failed")
		o.sendError(user.ID, "Fehler bei der Klärung der Änderung")
		return nil, false
	}
	return &childResult{res: res, call: call}, true
}

// applyChanges computes the new code, sanitizes it when the validator
// objects, commits it with a history snapshot and emits code_update plus
// an optional gallery preview.
func (o *Orchestrator) applyChanges(user *models.User, site *models.Website, current code.Code, data ResponseData, rt models.ResponseType, callID uint) {
	var newCode code.Code
	ct := models.ChangeAIUpdate
	switch rt {
	case models.ResponseUpdate:
		newCode = code.ApplyUpdates(current, data.Updates, false)
	case models.ResponseUpdateAll:
		newCode = code.ApplyUpdates(current, data.Updates, true)
	case models.ResponseRewrite:
		ct = models.ChangeAIRewrite
		if data.NewCode == nil {
			log.Warn().Uint("user_id", user.ID).Msg("rewrite without new_code, nothing to apply")
			return
		}
		newCode = current.Merge(data.NewCode.HTML, data.NewCode.CSS, data.NewCode.JS)
	default:
		return
	}

	if ok, reasons := code.Validate(newCode); !ok {
		log.Warn().Strs("reasons", reasons).Uint("user_id", user.ID).Msg("ai output failed validation, sanitizing")
		newCode = code.Sanitize(newCode)
	}

	if err := o.projects.CommitChange(site, newCode, ct, &callID); err != nil {
		log.Error().Err(err).Uint("website_id", site.ID).Msg("commit failed")
		o.sendError(user.ID, "Fehler bei der KI-Anfrage")
		return
	}

	// The browser distinguishes update vs update_all vs rewrite; the
	// coarser ai_update/ai_rewrite tag is for the history row only.
	o.sender.SendTo(user.ID, "code_update", codeUpdatePayload{
		HTML:        newCode.HTML,
		CSS:         newCode.CSS,
		JS:          newCode.JS,
		ChangeType:  string(rt),
		Description: data.Explanation,
	})

	if site.IsPublic {
		o.gallery.Queue(user.WorkshopID, user.ID, GalleryPreview{
			ProjectID:       site.ID,
			HTML:            site.HTML,
			CSS:             site.CSS,
			JS:              site.JS,
			Name:            site.Name,
			Slug:            site.Slug,
			Description:     site.Description,
			Tags:            site.Tags,
			Username:        user.Username,
			UserDisplayName: user.DisplayName,
			IsCollaborative: site.IsCollaborative,
			UpdatedAt:       site.UpdatedAt,
		})
	}
}

func (o *Orchestrator) sendChat(userID uint, data ResponseData) {
	o.sender.SendTo(userID, "chat_message", chatPayload{
		Message:             data.ChatMessage,
		Explanation:         data.Explanation,
		FollowUpSuggestions: data.FollowUpSuggestions,
		NewConcepts:         data.NewConcepts,
	})
}

func (o *Orchestrator) sendCostUpdate(userID uint, lastCost float64) {
	stats, err := o.gov.UserStats(userID)
	if err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("cost stats query failed")
		return
	}
	o.sender.SendTo(userID, "cost_update", costUpdatePayload{
		TotalCost:      stats.TotalCost,
		LastCallCost:   lastCost,
		CostPercentage: stats.CostPercentage,
	})
}
