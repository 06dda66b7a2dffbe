package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/eqtlab/whale-tracker/pkg/db"
)

// PendingJobs counts gue jobs of jobType that are waiting in the queue or being worked.
func (s *Storage) PendingJobs(ctx context.Context, jobType string) (int, error) {
	query := db.Builder.
		Select("count(*)").
		From("gue_jobs").
		Where(sq.Eq{"job_type": jobType})

	var count int
	if err := s.db.Query(ctx, query, db.ScanOnce(&count)); err != nil {
		return 0, fmt.Errorf("db select: %w", err)
	}

	return count, nil
}
