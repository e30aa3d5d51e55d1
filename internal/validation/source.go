package validation

import (
	"errors"
	"slices"
	"strings"

	"github.com/daghondi/ghondiclaude.tech/internal/model"
)

// NormalizeSource lowercases the origin tag and maps an empty tag to "other".
func NormalizeSource(source string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return model.SourceOther
	}
	return source
}

// ValidateSource checks a normalized origin tag against the known sources
func ValidateSource(source string) error {
	if !slices.Contains(model.Sources, source) {
		return errors.New("unknown source (expected one of: " + strings.Join(model.Sources, ", ") + ")")
	}
	return nil
}
