package engine

import (
	"errors"

	"github.com/jwebster45206/branch-engine/pkg/catalog"
)

var (
	// ErrChoiceNotFound means the selected choice is not in the
	// offered catalog. Recoverable: the caller should re-fetch the
	// catalog and present it again.
	ErrChoiceNotFound = errors.New("choice not found in catalog")

	// ErrGenerationUnavailable means the generative collaborator
	// failed or returned unusable output. Enrichment recovers by
	// keeping the deterministic template text; the sentinel is the
	// same value catalog.Enrich wraps, so errors.Is matches either
	// package's name for it.
	ErrGenerationUnavailable = catalog.ErrGenerationUnavailable
)
