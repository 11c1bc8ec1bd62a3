package services

import (
	"context"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"microfinance/models"
	"microfinance/scoring"
	"microfinance/utils"
)

// BackfillResult итог пересчета рейтингов
type BackfillResult struct {
	Scored  int `json:"scored"`
	Skipped int `json:"skipped"` // заемщики без заявок. При onlyMissing уже оцененные не выбираются и не считаются
}

// RatingService выставляет синтетические кредитные рейтинги заемщикам
type RatingService struct {
	db *gorm.DB
}

// NewRatingService создает новый экземпляр RatingService
func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// Backfill считает рейтинг каждого заемщика по его последней заявке и профессии.
// При onlyMissing заемщики с уже выставленным рейтингом пропускаются.
func (s *RatingService) Backfill(ctx context.Context, jitter scoring.Jitter, onlyMissing bool) (BackfillResult, error) {
	var result BackfillResult

	query := s.db.WithContext(ctx).Model(&models.Borrower{})
	if onlyMissing {
		query = query.Where("credit_score IS NULL")
	}

	var batch []models.Borrower
	err := query.FindInBatches(&batch, 100, func(_ *gorm.DB, _ int) error {
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}

			borrower := batch[i]
			var app models.LoanApplication
			err := s.db.WithContext(ctx).
				Where("borrower_id = ?", borrower.ID).
				Order("id DESC").
				First(&app).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("заемщик %d: %w", borrower.ID, err)
			}

			score, rating := scoring.Score(scoring.Profile{
				Amount:     app.Amount,
				Purpose:    app.Purpose,
				TermMonths: app.TermMonths,
				Occupation: borrower.Occupation,
			}, jitter)

			if err := s.db.WithContext(ctx).Model(&models.Borrower{}).
				Where("id = ?", borrower.ID).
				Updates(map[string]interface{}{
					"credit_score":  score,
					"credit_rating": string(rating),
				}).Error; err != nil {
				return fmt.Errorf("ошибка сохранения рейтинга заемщика %d: %w", borrower.ID, err)
			}
			result.Scored++
		}
		return nil
	}).Error
	if err != nil {
		return result, fmt.Errorf("ошибка пересчета рейтингов: %w", err)
	}

	utils.LogInfo("Рейтинги пересчитаны: %d, пропущено %d", result.Scored, result.Skipped)
	return result, nil
}
