package stage

import (
	"context"
	"fmt"
	"strings"

	"discord-marketing/pipeline/models"
	"discord-marketing/pipeline/runctx"
)

// RunFormat renders each extract's raw content into publish-ready
// copy: a short framing line plus the extract body, no LLM call
// involved since spec'd formatting is deterministic.
func RunFormat(ctx context.Context, rc *runctx.Context, opts Options) (*Result, error) {
	result := newResult()

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	extracts, err := rc.Store.ExtractsMissingFormat(ctx, limit)
	if err != nil {
		return result, err
	}
	if len(extracts) == 0 || opts.DryRun {
		return result, nil
	}

	for _, e := range extracts {
		formatted := formatExtract(e)
		if err := rc.Store.UpdateExtractFormattedContent(ctx, e.ID, formatted); err != nil {
			result.Errors = append(result.Errors, BatchError{Error: err.Error(), IDs: []string{fmt.Sprint(e.ID)}})
			continue
		}
		result.Processed++
		result.ExtractCounts[string(e.ExtractType)]++
	}
	return result, nil
}

func formatExtract(e models.MarketingExtract) string {
	content := strings.TrimSpace(e.Content)
	switch e.ExtractType {
	case models.ExtractQuote:
		return fmt.Sprintf("“%s”", content)
	case models.ExtractAnnouncement:
		return fmt.Sprintf("\U0001F4E2 %s", content)
	case models.ExtractFAQ:
		return fmt.Sprintf("Q&A: %s", content)
	default:
		return content
	}
}
