package emailing

import (
	"regexp"
	"strings"

	"github.com/jonathan/speaker-outreach/internal/types"
)

const (
	maxDetailRunes   = 120
	bioFallbackWords = 12
)

var projectClause = regexp.MustCompile(`(?i)([^.]*\b(project|programme|package|data centre)\b[^.]*)\.\s*`)

// PickSpecificDetail chooses the one concrete detail an email should reference:
// the first talk title, else the first bio sentence naming a project, programme,
// package or data centre, else the opening words of the bio. Empty when the
// speaker has neither talks nor bio.
func PickSpecificDetail(sp types.Speaker) string {
	if len(sp.TalkTitles) > 0 {
		return truncateRunes(collapseSpace(sp.TalkTitles[0]), maxDetailRunes)
	}

	bio := collapseSpace(sp.Bio)
	if bio == "" {
		return ""
	}
	if m := projectClause.FindStringSubmatch(bio); m != nil {
		return truncateRunes(strings.TrimSpace(m[1]), maxDetailRunes)
	}

	words := strings.Fields(bio)
	if len(words) > bioFallbackWords {
		words = words[:bioFallbackWords]
	}
	return strings.Join(words, " ")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
