package ai

import (
	"strings"

	"github.com/KaiserRuben/AI-Website-Workshop/internal/code"
)

// contextRadius is how many characters around each occurrence are shown
// to the model during disambiguation.
const contextRadius = 40

// Match is one occurrence of a replacement target in the current code.
type Match struct {
	File    string `json:"file"`
	Offset  int    `json:"offset"`
	Context string `json:"context"`
}

// FindMatches returns every occurrence of old across the three files.
// More than one match under a plain update means the edit is ambiguous
// and needs a disambiguation turn.
func FindMatches(old string, c code.Code) []Match {
	if old == "" {
		return nil
	}
	var out []Match
	for _, file := range []string{code.FileHTML, code.FileCSS, code.FileJS} {
		body := c.Get(file)
		from := 0
		for {
			i := strings.Index(body[from:], old)
			if i < 0 {
				break
			}
			at := from + i
			out = append(out, Match{File: file, Offset: at, Context: surrounding(body, at, len(old))})
			from = at + len(old)
		}
	}
	return out
}

func surrounding(body string, at, length int) string {
	lo := at - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := at + length + contextRadius
	if hi > len(body) {
		hi = len(body)
	}
	return body[lo:hi]
}
