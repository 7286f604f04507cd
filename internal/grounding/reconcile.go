package grounding

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Placeholder substitution is a two-phase protocol: Parse emits textual
// sentinels for image URLs (the final identifier only exists after the
// extracted image is persisted), then Reconcile substitutes the saved ids
// positionally and prunes whatever extraction failed to produce.

var (
	placeholderRe = regexp.MustCompile(`__IMAGE_PLACEHOLDER_\d+__`)
)

// Placeholder returns the sentinel for the i-th image region.
func Placeholder(i int) string {
	return fmt.Sprintf("__IMAGE_PLACEHOLDER_%d__", i)
}

// PlaceholderResolver returns a URLResolver that emits sentinels for later
// reconciliation.
func PlaceholderResolver() URLResolver {
	return func(imageIndex int, _ Reference) string {
		return Placeholder(imageIndex)
	}
}

// Reconcile substitutes placeholder i with finalRefs[i] for every saved
// image reference, then removes the enclosing Markdown image line for any
// placeholder left without an id (a region whose crop or save failed).
// Orphan removal is a recoverable partial-extraction event, not an error.
func Reconcile(markdown string, finalRefs []string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	result := markdown
	for i, ref := range finalRefs {
		result = strings.ReplaceAll(result, Placeholder(i), ref)
	}

	orphans := placeholderRe.FindAllString(result, -1)
	if len(orphans) == 0 {
		return result
	}

	logger.Warn("removing orphaned image placeholders", "count", len(orphans))
	for _, orphan := range orphans {
		lineRe := regexp.MustCompile(`!\[[^\]]*\]\(` + regexp.QuoteMeta(orphan) + `\)\n?`)
		result = lineRe.ReplaceAllString(result, "")
	}
	return result
}
