package http

import (
	"html/template"
	"net/url"
	"strings"

	"txview/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return stripControl(strings.TrimSpace(s))
}

// stripControl drops control characters other than tab, LF and CR.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if (r < 32 && r != 9 && r != 10 && r != 13) || r == 127 {
			return -1
		}
		return r
	}, s)
}

// pathEscape makes an id safe to splice into a URL path segment.
func pathEscape(id core.ID) string {
	return url.PathEscape(id.String())
}

// formatAmount renders an amount exactly as the store holds it.
func formatAmount(a core.Amount) string {
	return a.Decimal.String()
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"amount":   formatAmount,
		"pathid":   pathEscape,
		"negative": func(a core.Amount) bool {
			return a.Decimal.IsNegative()
		},
	}
}
