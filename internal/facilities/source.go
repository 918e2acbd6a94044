// Package facilities loads the candidate set of medical facilities from a
// CSV asset or a PostgreSQL table.
package facilities

import (
	"context"

	"github.com/UnknownOlympus/asclepius/internal/models"
)

// Source yields the full facility list. Order is preserved from the underlying
// record source, since nearest-facility ties resolve to the first entry.
type Source interface {
	Load(ctx context.Context) ([]models.Facility, error)
}
