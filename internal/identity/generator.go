// Package identity assigns durable prediction identifiers.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique, collision-resistant prediction ids of the form
// {modelVersion}-{UTC timestamp}-{uuid suffix}. The timestamp keeps ids
// human-sortable; the random suffix makes two calls for the same model in
// the same second distinct, so uniqueness does not depend on the clock.
type Generator struct{}

// NewGenerator creates an id generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewID returns a fresh prediction id for the given model version.
// Safe for concurrent use.
func (g *Generator) NewID(modelVersion string) string {
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("%s-%s-%s",
		sanitizeVersion(modelVersion),
		time.Now().UTC().Format("20060102150405"),
		suffix,
	)
}

// sanitizeVersion strips characters that would break id parsing or
// file-backed storage layouts.
func sanitizeVersion(v string) string {
	if v == "" {
		return "unversioned"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_':
			return r
		default:
			return '-'
		}
	}, v)
}
