package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/code"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/config"
	"github.com/KaiserRuben/AI-Website-Workshop/internal/models"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const toolName = "process_website_request"

// historyWindow bounds how many prior chat turns are sent as context.
const historyWindow = 5

const systemPrompt = `Du bist ein Experte für Webentwicklung und hilfst Jugendlichen beim Erstellen von HTML, CSS und JavaScript Code.
WICHTIG - TECHNISCHE VORGABEN:
- Tailwind CSS und Alpine.js sind BEREITS über CDN eingebunden - füge NIEMALS diese Script/Link Tags hinzu
- Nutze Tailwind CSS Utility-Klassen für Styling und Alpine.js Direktiven für Interaktivität
- Erstelle NUR den Body-Content, keine DOCTYPE, head, oder script-Tags für Bibliotheken
CODE-REGELN:
- Schreibe sauberen, gut strukturierten Code und erkläre in einfacher Sprache was du tust
- Stelle sicher, dass der Code sicher ist (kein eval, keine externen Skripte)
Antworte immer auf Deutsch, es sei denn der Nutzer schreibt in einer anderen Sprache.`

const toolSchema = `{
  "type": "object",
  "properties": {
    "response_type": {
      "type": "string",
      "enum": ["chat", "update", "update_all", "rewrite"],
      "description": "Type of response: chat (just talk), update (modify existing), update_all (modify every occurrence), rewrite (complete new code)"
    },
    "chat_message": {
      "type": "string",
      "description": "Message to show the user explaining what you're doing"
    },
    "updates": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "file": {"type": "string", "enum": ["html", "css", "js"]},
          "old_str": {"type": "string"},
          "new_str": {"type": "string"},
          "description": {"type": "string"}
        },
        "required": ["file", "old_str", "new_str"]
      },
      "description": "List of code updates to apply"
    },
    "new_code": {
      "type": "object",
      "properties": {
        "html": {"type": "string"},
        "css": {"type": "string"},
        "js": {"type": "string"}
      },
      "description": "Complete new code for rewrite"
    },
    "explanation": {"type": "string", "description": "Technical explanation of changes made"},
    "new_concepts": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Web concepts newly introduced to the user by this answer"
    },
    "follow_up_suggestions": {
      "type": "array",
      "maxItems": 3,
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "prompt": {"type": "string"},
          "icon": {"type": "string"}
        },
        "required": ["title", "prompt", "icon"]
      },
      "description": "Vorschläge für nächste Schritte"
    }
  },
  "required": ["response_type", "chat_message"]
}`

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Suggestion struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
	Icon   string `json:"icon"`
}

// Rewrite is the full-replacement payload. Pointer fields distinguish
// "absent, keep the old file" from "present and empty".
type Rewrite struct {
	HTML *string `json:"html"`
	CSS  *string `json:"css"`
	JS   *string `json:"js"`
}

// ResponseData is the parsed structured function-call result.
type ResponseData struct {
	ResponseType        string       `json:"response_type"`
	ChatMessage         string       `json:"chat_message"`
	Updates             []code.Edit  `json:"updates,omitempty"`
	NewCode             *Rewrite     `json:"new_code,omitempty"`
	Explanation         string       `json:"explanation,omitempty"`
	NewConcepts         []string     `json:"new_concepts,omitempty"`
	FollowUpSuggestions []Suggestion `json:"follow_up_suggestions,omitempty"`
}

type Result struct {
	Data     ResponseData
	Raw      string
	Usage    Usage
	Model    string
	Duration time.Duration
}

type GenerateInput struct {
	Prompt          string
	CurrentCode     code.Code
	History         []models.ChatMessage
	LearnedConcepts []string
	Images          []string
}

type DisambiguateInput struct {
	OriginalPrompt string
	OldStr         string
	Matches        []Match
	CurrentCode    code.Code
}

// Client is the LLM boundary the orchestrator talks to.
type Client interface {
	Generate(ctx context.Context, in GenerateInput) (*Result, error)
	Disambiguate(ctx context.Context, in DisambiguateInput) (*Result, error)
	Cost(u Usage) float64
}

// AzureClient talks to an Azure OpenAI deployment through go-openai.
type AzureClient struct {
	client     *openai.Client
	deployment string
	inRate     float64
	outRate    float64
}

func NewAzureClient(cfg config.Config) *AzureClient {
	acfg := openai.DefaultAzureConfig(cfg.AzureOpenAIKey, cfg.AzureOpenAIEndpoint)
	acfg.APIVersion = cfg.AzureAPIVersion
	return &AzureClient{
		client:     openai.NewClientWithConfig(acfg),
		deployment: cfg.AzureDeployment,
		inRate:     cfg.CostPer1MInputTokens,
		outRate:    cfg.CostPer1MOutputTokens,
	}
}

func codeContext(c code.Code) string {
	return fmt.Sprintf("Aktueller Code der Website:\n\nHTML:\n```html\n%s\n```\n\nCSS:\n```css\n%s\n```\n\nJavaScript:\n```javascript\n%s\n```\n", c.HTML, c.CSS, c.JS)
}

func (a *AzureClient) Generate(ctx context.Context, in GenerateInput) (*Result, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	history := in.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	var b strings.Builder
	b.WriteString(codeContext(in.CurrentCode))
	if len(in.LearnedConcepts) > 0 {
		b.WriteString("\nBereits gelernte Konzepte: " + strings.Join(in.LearnedConcepts, ", ") + "\n")
	}
	if len(in.Images) > 0 {
		b.WriteString("\nHochgeladene Bilder (verwendbar per URL): " + strings.Join(in.Images, ", ") + "\n")
	}
	b.WriteString("\nNutzer-Anfrage: " + in.Prompt)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: b.String()})

	return a.complete(ctx, msgs)
}

func (a *AzureClient) Disambiguate(ctx context.Context, in DisambiguateInput) (*Result, error) {
	var b strings.Builder
	b.WriteString(codeContext(in.CurrentCode))
	fmt.Fprintf(&b, "\nDie ursprüngliche Anfrage war: %q\n", in.OriginalPrompt)
	fmt.Fprintf(&b, "Der zu ersetzende Text %q kommt %d-mal vor:\n\n", in.OldStr, len(in.Matches))
	for i, m := range in.Matches {
		fmt.Fprintf(&b, "Treffer %d (%s): ...%s...\n", i+1, m.File, m.Context)
	}
	b.WriteString("\nEntscheide: Antworte mit response_type \"update\" und einem eindeutigeren old_str (mehr umgebender Kontext), wenn nur eine Stelle gemeint ist, oder mit \"update_all\", wenn alle Stellen geändert werden sollen.")

	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: b.String()},
	}
	return a.complete(ctx, msgs)
}

func (a *AzureClient) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (*Result, error) {
	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.deployment,
		Messages: msgs,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolName,
				Description: "Process user's website modification request",
				Parameters:  json.RawMessage(toolSchema),
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: toolName},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices returned")
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	msg := resp.Choices[0].Message
	raw := ""
	if len(msg.ToolCalls) > 0 {
		raw = msg.ToolCalls[0].Function.Arguments
	}
	data := ParseArguments(raw)
	if raw == "" && msg.Content != "" {
		// Model ignored the forced tool choice; degrade to plain chat.
		data = ResponseData{ResponseType: string(models.ResponseChat), ChatMessage: msg.Content}
	}
	log.Info().Str("response_type", data.ResponseType).Int("tokens", usage.TotalTokens).Dur("duration", time.Since(start)).Msg("llm response")

	return &Result{
		Data:     data,
		Raw:      raw,
		Usage:    usage,
		Model:    a.deployment,
		Duration: time.Since(start),
	}, nil
}

// Cost computes the monetary cost of one call from fixed per-million
// token rates, rounded to 6 decimals.
func (a *AzureClient) Cost(u Usage) float64 {
	c := float64(u.PromptTokens)/1_000_000*a.inRate + float64(u.CompletionTokens)/1_000_000*a.outRate
	return math.Round(c*1e6) / 1e6
}

// ParseArguments parses the tool-call arguments. Malformed JSON gets one
// repair attempt (balancing an odd trailing quote); if that fails too,
// the result degrades to a chat-only apology. It never fails.
func ParseArguments(raw string) ResponseData {
	var data ResponseData
	if err := json.Unmarshal([]byte(raw), &data); err == nil {
		return data
	}
	if strings.Count(raw, `"`)%2 == 1 {
		for _, repaired := range []string{raw + `"`, raw + `"}`} {
			if err := json.Unmarshal([]byte(repaired), &data); err == nil {
				log.Warn().Msg("repaired malformed tool arguments")
				return data
			}
		}
	}
	log.Error().Str("raw", truncate(raw, 200)).Msg("unparseable tool arguments, falling back to chat")
	return ResponseData{
		ResponseType: string(models.ResponseChat),
		ChatMessage:  "Entschuldigung, ich konnte die Antwort nicht verarbeiten. Versuche es bitte noch einmal.",
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
