package export

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"bijbelzoek/api/internal/chart"
)

// DefaultTheme is used when nothing in the request suggests a theme.
const DefaultTheme = "Bijbelstudie"

// DeriveTheme picks the document theme: the first AI result's structured
// theme or title, or its plain title up to an em dash; else up to three
// chart words; else the first favourite text's reference.
func DeriveTheme(req Request) string {
	for _, r := range req.AIResults {
		if r.Structured != nil {
			if t := strings.TrimSpace(r.Structured.Known.Theme); t != "" {
				return t
			}
			if t := strings.TrimSpace(r.Structured.Known.Title); t != "" {
				return t
			}
		}
		if t := strings.TrimSpace(strings.Split(r.Title, "—")[0]); t != "" {
			return t
		}
	}

	seen := make(map[string]bool)
	var words []string
	for _, c := range req.FavoriteCharts {
		for _, w := range chart.CleanWords(c.Words) {
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	if len(words) > 0 {
		return strings.Join(words[:min(3, len(words))], ", ")
	}

	if len(req.FavoriteTexts) > 0 {
		if ref := strings.TrimSpace(req.FavoriteTexts[0].Ref); ref != "" {
			return ref
		}
	}
	return DefaultTheme
}

// Filename builds <Theme>_Bijbelzoek.nl_Export_<YYYY_MM_DD>.<ext>.
func Filename(theme string, at time.Time, f Format) string {
	return fmt.Sprintf("%s_Bijbelzoek.nl_Export_%s.%s", sanitizeFilename(theme), at.Format("2006_01_02"), f)
}

// sanitizeFilename creates a safe filename part from a theme: diacritics are
// folded to ASCII, spaces become hyphens and everything else is dropped.
func sanitizeFilename(theme string) string {
	// Chained transformers keep state, so each call builds its own.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, theme)
	if err != nil {
		folded = theme
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '/', r == '\\', r == ':':
			b.WriteByte('-')
		default:
			// Skip other characters
		}
	}

	result := b.String()
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")

	// Limit length
	if len(result) > 50 {
		result = strings.TrimRight(result[:50], "-")
	}

	if result == "" {
		result = DefaultTheme
	}

	return result
}
