package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/branch-engine/pkg/narrative"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <premise.yaml> [more premises...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &PremiseValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

type PremiseValidator struct {
	errors []string
}

var validFilename = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func (v *PremiseValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".yaml") {
		return fmt.Errorf("premise file must have .yaml extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".yaml")
	if !validFilename.MatchString(nameWithoutExt) {
		return fmt.Errorf("premise filename '%s' must be lowercase snake_case (e.g., my_premise.yaml)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil

	var p narrative.Premise
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return fmt.Errorf("file %s failed strict YAML unmarshaling: %w", filename, err)
	}

	if p.ID == "" {
		p.ID = nameWithoutExt
	} else if p.ID != nameWithoutExt {
		v.addError("id %q does not match filename %q", p.ID, nameWithoutExt)
	}

	if err := p.Validate(); err != nil {
		v.addError("%v", err)
	}

	v.validateChoiceGraph(&p)
	v.validateHatches(&p)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

// validateChoiceGraph checks opening choice IDs for uniqueness and
// consequence timing for coherence.
func (v *PremiseValidator) validateChoiceGraph(p *narrative.Premise) {
	seen := make(map[string]bool)
	for _, c := range p.OpeningChoices {
		if seen[c.ID] {
			v.addError("duplicate opening choice id %q", c.ID)
		}
		seen[c.ID] = true

		for i, cons := range c.Consequences {
			if cons.DelayedEffect != "" && cons.Delay <= 0 {
				v.addError("choice %q consequence %d: delayed effect requires a positive delay", c.ID, i)
			}
			for j, bp := range cons.ButterflyPotential {
				if bp.CascadeDelay <= 0 {
					v.addError("choice %q consequence %d butterfly %d: cascade delay must be positive", c.ID, i, j)
				}
			}
		}
	}
}

// validateHatches warns about hatches whose trigger does not match any
// authored choice. Generated follow-up IDs derive from opening choice
// IDs, so a prefix match is accepted.
func (v *PremiseValidator) validateHatches(p *narrative.Premise) {
	for _, h := range p.EscapeHatches {
		matched := false
		for _, c := range p.OpeningChoices {
			if h.TriggerChoice == c.ID || strings.HasPrefix(h.TriggerChoice, c.ID+"-") {
				matched = true
				break
			}
		}
		if !matched {
			fmt.Printf("  warning: escape hatch %q triggers on %q, which no authored choice produces directly\n",
				h.ID, h.TriggerChoice)
		}
		if h.EscapeType == narrative.EscapeGenreShift && h.NewStoryDirection.Genre == "" {
			v.addError("escape hatch %q: genre-shift requires a new genre", h.ID)
		}
	}
}

func (v *PremiseValidator) addError(format string, args ...interface{}) {
	v.errors = append(v.errors, "  - "+fmt.Sprintf(format, args...))
}
