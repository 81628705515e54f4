package code

import (
	"fmt"
	"strings"
)

// Code is one project's editable source, keyed by file kind.
type Code struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	JS   string `json:"js"`
}

const (
	FileHTML = "html"
	FileCSS  = "css"
	FileJS   = "js"
)

func (c Code) Get(file string) string {
	switch file {
	case FileHTML:
		return c.HTML
	case FileCSS:
		return c.CSS
	case FileJS:
		return c.JS
	}
	return ""
}

func (c *Code) Set(file, content string) {
	switch file {
	case FileHTML:
		c.HTML = content
	case FileCSS:
		c.CSS = content
	case FileJS:
		c.JS = content
	}
}

// Merge overlays the non-nil fields of a partial update onto c.
func (c Code) Merge(html, css, js *string) Code {
	out := c
	if html != nil {
		out.HTML = *html
	}
	if css != nil {
		out.CSS = *css
	}
	if js != nil {
		out.JS = *js
	}
	return out
}

// Edit is one structured string-replacement operation from the LLM.
type Edit struct {
	File        string `json:"file"`
	OldStr      string `json:"old_str"`
	NewStr      string `json:"new_str"`
	Description string `json:"description,omitempty"`
}

// ValidationError carries the itemized deny-list violations of a rejected
// manual edit.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Code-Validierung fehlgeschlagen: %s", strings.Join(e.Reasons, "; "))
}
