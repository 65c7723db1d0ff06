package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

// ErrGenerationUnavailable means the generative collaborator failed or
// returned unusable output for at least one choice. Enrichment recovers
// by keeping template text; the sentinel lets callers surface the
// degradation.
var ErrGenerationUnavailable = errors.New("narrative content generation unavailable")

// ContentService authors narrative prose beyond the deterministic
// templates. The engine only ever uses it for text: the shape of a
// catalog (counts, types, magnitudes) never depends on model output.
type ContentService interface {
	GenerateNarrativeContent(ctx context.Context, prompt string) (string, error)
}

// Enrich replaces template choice text with generated prose. A failed
// or unusable generation leaves the template text in place; enrichment
// degrades, it never fails a resolution. The returned catalog is always
// usable; the error, when non-nil, wraps ErrGenerationUnavailable and
// reports the first choice whose generation degraded.
func Enrich(ctx context.Context, svc ContentService, choices []narrative.Choice, b *branch.BranchState, premise *narrative.Premise, logger *slog.Logger) ([]narrative.Choice, error) {
	if svc == nil || len(choices) == 0 {
		return choices, nil
	}

	out := make([]narrative.Choice, len(choices))
	copy(out, choices)

	var degraded error
	for i := range out {
		prompt := enrichPrompt(&out[i], b, premise)
		text, err := svc.GenerateNarrativeContent(ctx, prompt)
		if err != nil {
			logger.Warn("Content generation unavailable, keeping template text",
				"choice", out[i].ID,
				"error", err)
			if degraded == nil {
				degraded = fmt.Errorf("enrich choice %s: %w", out[i].ID, ErrGenerationUnavailable)
			}
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			if degraded == nil {
				degraded = fmt.Errorf("enrich choice %s: blank generation: %w", out[i].ID, ErrGenerationUnavailable)
			}
			continue
		}
		out[i].Text = text
	}
	return out, degraded
}

func enrichPrompt(c *narrative.Choice, b *branch.BranchState, premise *narrative.Premise) string {
	var sb strings.Builder
	sb.WriteString("Rewrite the following story choice as one vivid sentence of second-person prose.\n")
	if premise != nil {
		fmt.Fprintf(&sb, "Genre: %s. Premise: %s.\n", premise.DisplayGenre(), premise.Statement)
	}
	fmt.Fprintf(&sb, "Story so far: %s (episode %d, thematic shift: %s).\n",
		b.Description, b.CurrentEpisode, b.ThematicShift)
	fmt.Fprintf(&sb, "Choice (%s, %s): %s\n", c.Type, c.Magnitude, c.Text)
	sb.WriteString("Respond with the rewritten sentence only.")
	return sb.String()
}
