package narrative

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Premise is the authored template for a story: its core thematic
// statement, the opening decision points, and the escape hatches that
// may derail it later. Premises are loaded from YAML files on disk.
type Premise struct {
	ID             string          `json:"id" yaml:"id"`
	Title          string          `json:"title" yaml:"title"`
	Genre          string          `json:"genre" yaml:"genre"`
	Statement      string          `json:"statement" yaml:"statement"` // the premise being tested by the story
	Tone           string          `json:"tone,omitempty" yaml:"tone,omitempty"`
	Themes         []string        `json:"themes,omitempty" yaml:"themes,omitempty"`
	Protagonist    string          `json:"protagonist,omitempty" yaml:"protagonist,omitempty"`
	Characters     []string        `json:"characters,omitempty" yaml:"characters,omitempty"`
	OpeningChoices []Choice        `json:"opening_choices" yaml:"opening_choices"`
	EscapeHatches  []EscapeHatch   `json:"escape_hatches,omitempty" yaml:"escape_hatches,omitempty"`
	OpeningFacts   map[string]bool `json:"opening_facts,omitempty" yaml:"opening_facts,omitempty"`
}

var titleCaser = cases.Title(language.English)

// DisplayGenre returns the genre formatted for display, e.g.
// "cosmic horror" becomes "Cosmic Horror".
func (p *Premise) DisplayGenre() string {
	return titleCaser.String(p.Genre)
}

// DisplayTitle returns the premise title, falling back to a title-cased
// version of the id when no explicit title was authored.
func (p *Premise) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return titleCaser.String(p.ID)
}

// Validate checks the premise and everything it embeds.
func (p *Premise) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("premise id cannot be empty")
	}
	if p.Statement == "" {
		return fmt.Errorf("premise %s: statement cannot be empty", p.ID)
	}
	if len(p.OpeningChoices) == 0 {
		return fmt.Errorf("premise %s: at least one opening choice is required", p.ID)
	}
	for i := range p.OpeningChoices {
		if err := p.OpeningChoices[i].Validate(); err != nil {
			return fmt.Errorf("premise %s: opening choice %d: %w", p.ID, i, err)
		}
	}
	for i := range p.EscapeHatches {
		if err := p.EscapeHatches[i].Validate(); err != nil {
			return fmt.Errorf("premise %s: escape hatch %d: %w", p.ID, i, err)
		}
	}
	return nil
}
