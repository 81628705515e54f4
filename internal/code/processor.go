package code

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// WhitelistedCDNs is the fixed set of trusted origins for external
// scripts, stylesheets and font imports. Anything else is rejected
// regardless of scheme.
var WhitelistedCDNs = []string{
	"https://unpkg.com",
	"https://cdnjs.cloudflare.com",
	"https://cdn.jsdelivr.net",
	"https://fonts.googleapis.com",
	"https://fonts.gstatic.com",
}

type denyRule struct {
	re     *regexp.Regexp
	reason string
}

// The deny lists keep the workshop sandbox safe without blocking the DOM
// and storage APIs participants are meant to learn with.
var (
	jsRules = []denyRule{
		{regexp.MustCompile(`(?i)eval\s*\(`), `eval(`},
		// Case-sensitive so plain "function" declarations stay legal.
		{regexp.MustCompile(`\bFunction\s*\(`), `Function(`},
		{regexp.MustCompile(`(?i)document\.write`), `document.write`},
		{regexp.MustCompile(`(?i)\.cookie`), `.cookie`},
		{regexp.MustCompile(`(?i)Worker\s*\(`), `Worker(`},
		{regexp.MustCompile(`(?i)importScripts`), `importScripts`},
		{regexp.MustCompile(`(?i)window\.location\s*=`), `window.location =`},
		{regexp.MustCompile(`(?i)document\.location\s*=`), `document.location =`},
		{regexp.MustCompile(`(?i)window\.open`), `window.open`},
		{regexp.MustCompile(`(?i)<script[^>]*src=`), `<script src=...>`},
	}
	htmlRules = []denyRule{
		{regexp.MustCompile(`(?i)<iframe`), `<iframe>`},
		{regexp.MustCompile(`(?i)<embed`), `<embed>`},
		{regexp.MustCompile(`(?i)<object`), `<object>`},
		{regexp.MustCompile(`(?i)<applet`), `<applet>`},
		{regexp.MustCompile(`(?i)<form[^>]*action=`), `<form action=...>`},
	}
	cssRules = []denyRule{
		{regexp.MustCompile(`(?i)expression\s*\(`), `expression(`},
		{regexp.MustCompile(`(?i)javascript:`), `javascript:`},
		{regexp.MustCompile(`(?i)behavior\s*:`), `behavior:`},
	}

	cssImportRe   = regexp.MustCompile(`(?i)@import\s+(?:url\(\s*)?["']?([^"')\s;]+)`)
	onAttrRe      = regexp.MustCompile(`(?i)^on`)
	cssImportAny  = regexp.MustCompile(`(?i)@import\s+[^;]*;?`)
	cssExpression = regexp.MustCompile(`(?i)expression\s*\([^)]*\)`)
)

func whitelisted(url string) bool {
	for _, cdn := range WhitelistedCDNs {
		if strings.HasPrefix(url, cdn) {
			return true
		}
	}
	return false
}

// ApplyUpdates applies structured edits to the current code. Each edit
// replaces the first occurrence of old_str in its file, or every
// occurrence when applyAll is set. A missing old_str is logged and
// skipped so partial batches still succeed. Pure: the input is not
// mutated and identical inputs produce identical output.
func ApplyUpdates(current Code, edits []Edit, applyAll bool) Code {
	out := current
	for _, e := range edits {
		body := out.Get(e.File)
		if e.File == "" || !strings.Contains(body, e.OldStr) {
			log.Warn().Str("file", e.File).Str("old_str", e.OldStr).Msg("update skipped: string not found")
			continue
		}
		if applyAll {
			out.Set(e.File, strings.ReplaceAll(body, e.OldStr, e.NewStr))
		} else {
			out.Set(e.File, strings.Replace(body, e.OldStr, e.NewStr, 1))
		}
	}
	return out
}

// Validate scans all three files against the deny lists. It is total:
// any input, including empty or unbalanced markup, yields a verdict and
// a list of violated rules.
func Validate(c Code) (bool, []string) {
	var errs []string
	errs = append(errs, validateHTML(c.HTML)...)
	errs = append(errs, validateCSS(c.CSS)...)
	errs = append(errs, validateJS(c.JS)...)
	return len(errs) == 0, errs
}

func validateHTML(html string) []string {
	var errs []string
	for _, r := range htmlRules {
		if r.re.MatchString(html) {
			errs = append(errs, "Unsicheres HTML-Muster gefunden: "+r.reason)
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return append(errs, "HTML-Parsing-Fehler: "+err.Error())
	}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if !whitelisted(src) {
			errs = append(errs, "Externe Skripte sind nicht erlaubt: "+src)
		}
	})
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href != "" && !whitelisted(href) {
			errs = append(errs, "Externe Stylesheets sind nur von vertrauenswürdigen CDNs erlaubt: "+href)
		}
	})
	return errs
}

func validateCSS(css string) []string {
	var errs []string
	for _, r := range cssRules {
		if r.re.MatchString(css) {
			errs = append(errs, "Unsicheres CSS-Muster gefunden: "+r.reason)
		}
	}
	for _, m := range cssImportRe.FindAllStringSubmatch(css, -1) {
		if !whitelisted(m[1]) {
			errs = append(errs, "Unsicheres CSS-Muster gefunden: @import "+m[1])
		}
	}
	return errs
}

func validateJS(js string) []string {
	var errs []string
	for _, r := range jsRules {
		if r.re.MatchString(js) {
			errs = append(errs, "Unsicheres JavaScript-Muster gefunden: "+r.reason)
		}
	}
	return errs
}

// Sanitize strips offending constructs instead of rejecting. Only the AI
// pipeline uses it; manual edits surface validation errors to the user
// instead.
func Sanitize(c Code) Code {
	out := Code{HTML: sanitizeHTML(c.HTML)}

	css := cssImportAny.ReplaceAllString(c.CSS, "")
	css = cssExpression.ReplaceAllString(css, "")
	out.CSS = css

	js := c.JS
	for _, r := range jsRules {
		js = r.re.ReplaceAllString(js, "/* entfernt */")
	}
	out.JS = js
	return out
}

func sanitizeHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Unparseable markup falls back to a coarse regex strip.
		s := html
		for _, r := range htmlRules {
			s = r.re.ReplaceAllString(s, "")
		}
		return s
	}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, _ := s.Attr("src"); !whitelisted(src) {
			s.Remove()
		}
	})
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		if href, _ := s.Attr("href"); href != "" && !whitelisted(href) {
			s.Remove()
		}
	})
	doc.Find("iframe, embed, object, applet").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		var drop []string
		for _, attr := range s.Nodes[0].Attr {
			if onAttrRe.MatchString(attr.Key) {
				drop = append(drop, attr.Key)
			}
		}
		for _, key := range drop {
			s.RemoveAttr(key)
		}
	})
	// The parser wraps fragments in a full document; hand back only the
	// head and body content so body-only code stays body-only.
	var sb strings.Builder
	if h, err := doc.Find("head").Html(); err == nil {
		sb.WriteString(h)
	}
	if b, err := doc.Find("body").Html(); err == nil {
		sb.WriteString(b)
	}
	return sb.String()
}
