package services

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dinor/dinor-api/models"
)

// ViewService counts detail views per subject and day.
type ViewService struct {
	db *gorm.DB
}

// NewViewService returns a ViewService.
func NewViewService(db *gorm.DB) *ViewService {
	return &ViewService{db: db}
}

// RecordView bumps the daily aggregate and, for interactive kinds, views_count.
func (s *ViewService) RecordView(ctx context.Context, subject models.Subject) error {
	// Use local midnight to align with DATE column
	now := time.Now().In(time.Local)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Atomic upsert to avoid duplicate key errors under concurrency
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "subject_type"}, {Name: "subject_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": time.Now()}),
		}).Create(&models.ContentView{Date: day, SubjectType: subject.Kind, SubjectID: subject.ID, Count: 1}).Error
		if err != nil {
			return err
		}
		if !subject.Kind.Interactive() {
			return nil
		}
		return tx.Model(models.NewContent(subject.Kind)).
			Where("id = ?", subject.ID).
			UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error
	})
}

// ViewsOn sums views recorded on day's calendar date across all subjects.
func (s *ViewService) ViewsOn(ctx context.Context, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var total int64
	err := s.db.WithContext(ctx).Model(&models.ContentView{}).
		Where("date >= ? AND date < ?", start, start.AddDate(0, 0, 1)).
		Select("COALESCE(SUM(count),0)").
		Scan(&total).Error
	return total, err
}
