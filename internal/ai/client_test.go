package ai

import (
	"strings"
	"testing"
)

func TestParseArgumentsValid(t *testing.T) {
	raw := `{"response_type":"update","chat_message":"Ich ändere den Titel","updates":[{"file":"html","old_str":"alt","new_str":"neu"}]}`
	data := ParseArguments(raw)
	if data.ResponseType != "update" {
		t.Errorf("ResponseType = %q, want update", data.ResponseType)
	}
	if len(data.Updates) != 1 || data.Updates[0].OldStr != "alt" {
		t.Errorf("Updates = %+v", data.Updates)
	}
}

func TestParseArgumentsRepairsTrailingQuote(t *testing.T) {
	raw := `{"response_type":"chat","chat_message":"Hallo`
	data := ParseArguments(raw)
	if data.ResponseType != "chat" {
		t.Errorf("ResponseType = %q, want chat after repair", data.ResponseType)
	}
	if data.ChatMessage != "Hallo" {
		t.Errorf("ChatMessage = %q, want Hallo", data.ChatMessage)
	}
}

func TestParseArgumentsFallback(t *testing.T) {
	for _, raw := range []string{"", "not json at all", `{"unterminated: true`} {
		data := ParseArguments(raw)
		if data.ResponseType != "chat" {
			t.Errorf("ParseArguments(%q).ResponseType = %q, want chat", raw, data.ResponseType)
		}
		if !strings.Contains(data.ChatMessage, "Entschuldigung") {
			t.Errorf("ParseArguments(%q).ChatMessage = %q, want apology", raw, data.ChatMessage)
		}
	}
}

func TestCost(t *testing.T) {
	a := &AzureClient{inRate: 2.0, outRate: 8.0}
	tests := []struct {
		name string
		u    Usage
		want float64
	}{
		{"zero", Usage{}, 0},
		{"input only", Usage{PromptTokens: 1_000_000}, 2.0},
		{"output only", Usage{CompletionTokens: 500_000}, 4.0},
		{"mixed", Usage{PromptTokens: 1000, CompletionTokens: 500}, 0.006},
		{"rounded to 6 decimals", Usage{PromptTokens: 1, CompletionTokens: 1}, 0.00001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Cost(tt.u)
			if got != tt.want {
				t.Errorf("Cost(%+v) = %v, want %v", tt.u, got, tt.want)
			}
		})
	}
}
