package archive

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alertbridge/src/database"
	"alertbridge/src/model"
)

// Repository persists dispatch mirror rows and serves reporting
// queries. It implements the ledger's Mirror interface.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository backed by the archive database.
func NewRepository() *Repository {
	return &Repository{db: database.MainDB}
}

// WithDB overrides the underlying *gorm.DB instance. Useful for tests
// or when using a specific session/transaction.
func (r *Repository) WithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save mirrors one terminal dispatch record. Replays of the same
// dispatch id are ignored, so a Redis append retried after a mirror
// failure cannot duplicate rows.
func (r *Repository) Save(ctx context.Context, record *model.DispatchRecord) error {
	row := model.NewDispatchArchive(record)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dispatch_id"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil {
		logger.WithError(err).WithField("dispatch_id", record.ID).Error("Failed to save dispatch archive row")
		return err
	}
	return nil
}

// SearchOptions narrows an archive query. UserID is required; the rest
// are optional filters.
type SearchOptions struct {
	UserID          string
	Symbol          *string
	Status          *string
	CompletedAfter  *time.Time
	CompletedBefore *time.Time
	Limit           int
	Offset          int
}

// Search returns mirror rows for a user, newest first.
func (r *Repository) Search(ctx context.Context, opts SearchOptions) ([]model.DispatchArchive, error) {
	query := r.db.WithContext(ctx).
		Model(&model.DispatchArchive{}).
		Where("user_id = ?", opts.UserID)

	if opts.Symbol != nil {
		query = query.Where("symbol = ?", *opts.Symbol)
	}
	if opts.Status != nil {
		query = query.Where("status = ?", *opts.Status)
	}
	if opts.CompletedAfter != nil {
		query = query.Where("completed_at >= ?", *opts.CompletedAfter)
	}
	if opts.CompletedBefore != nil {
		query = query.Where("completed_at <= ?", *opts.CompletedBefore)
	}

	query = query.Order("completed_at DESC, id DESC")

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var rows []model.DispatchArchive
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
