package repository

import (
	"context"
	"fmt"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
)

// PgSequenceRepository allocates yearly numbers from number_sequences. The
// upsert takes a row lock, so concurrent callers serialize on (prefix, year)
// and never see the same value.
type PgSequenceRepository struct {
	db database.Querier
}

// NewSequenceRepository creates a new PgSequenceRepository.
func NewSequenceRepository(db database.Querier) *PgSequenceRepository {
	return &PgSequenceRepository{db: db}
}

// sequenceSources maps a prefix to the table whose numbers seed the counter
// the first time a year is used.
var sequenceSources = map[string]string{
	domain.PrefixServiceOrder:  "service_orders",
	domain.PrefixPurchaseOrder: "purchase_orders",
}

// Next returns the next value for prefix in year, starting after the highest
// number already stored for that year.
func (r *PgSequenceRepository) Next(ctx context.Context, prefix string, year int) (int, error) {
	table, ok := sequenceSources[prefix]
	if !ok {
		return 0, errors.InvalidInput("prefix", fmt.Sprintf("unknown sequence prefix %q", prefix))
	}

	// The seed parses the numeric tail of "PREFIX-YEAR-NNN".
	query := fmt.Sprintf(`
		INSERT INTO number_sequences (prefix, year, last_value)
		VALUES ($1, $2, (
		    SELECT COALESCE(MAX(CAST(split_part(number, '-', 3) AS INTEGER)), 0) + 1
		    FROM %s
		    WHERE number LIKE $3
		))
		ON CONFLICT (prefix, year)
		DO UPDATE SET last_value = number_sequences.last_value + 1
		RETURNING last_value
	`, table)

	var value int
	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)
	if err := r.db.QueryRow(ctx, query, prefix, year, pattern).Scan(&value); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to allocate sequence number")
	}
	return value, nil
}
