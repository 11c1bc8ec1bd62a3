package services

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"microfinance/cache"
	"microfinance/loanmath"
	"microfinance/utils"
	"time"
)

// QuoteRequest параметры расчета кредита
type QuoteRequest struct {
	Amount     float64  `json:"amount" validate:"required,gt=0"`
	TermMonths int      `json:"termMonths" validate:"required,gte=1,lte=120"`
	Rate       *float64 `json:"rate,omitempty" validate:"omitempty,gte=0,lte=1"` // месячная ставка; по умолчанию тарифная
}

// QuoteResult расчет кредита с графиком платежей
type QuoteResult struct {
	Amount       float64                `json:"amount"`
	TermMonths   int                    `json:"termMonths"`
	InterestRate float64                `json:"interestRate"`
	RateSource   string                 `json:"rateSource"` // tier или custom
	Quote        loanmath.Quote         `json:"quote"`
	Schedule     []loanmath.Installment `json:"schedule"`
}

// CalculatorService рассчитывает кредит без сохранения
type CalculatorService struct {
	validator *validator.Validate
	cache     cache.Cache
	ttl       time.Duration
	now       func() time.Time
}

// NewCalculatorService создает новый экземпляр CalculatorService
func NewCalculatorService(c cache.Cache, ttl time.Duration) *CalculatorService {
	if c == nil {
		c = cache.NewMemory()
	}
	return &CalculatorService{
		validator: validator.New(),
		cache:     c,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Quote рассчитывает платеж и график. Без ставки применяется тарифная сетка.
func (s *CalculatorService) Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error) {
	if err := validateStruct(s.validator, req); err != nil {
		return nil, err
	}

	rate := loanmath.RateForAmount(req.Amount)
	source := "tier"
	if req.Rate != nil {
		rate = *req.Rate
		source = "custom"
	}

	start := s.now().UTC().Truncate(24 * time.Hour)
	key := fmt.Sprintf("quote:%.2f:%d:%.4f:%s", req.Amount, req.TermMonths, rate, start.Format("2006-01-02"))

	var cached QuoteResult
	err := cache.GetJSON(ctx, s.cache, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		utils.LogError("Ошибка чтения расчета из кэша: %v", err)
	}

	q := loanmath.Amortize(req.Amount, rate, req.TermMonths)
	if !q.IsValid {
		return nil, ErrInvalidQuote
	}

	result := &QuoteResult{
		Amount:       req.Amount,
		TermMonths:   req.TermMonths,
		InterestRate: rate,
		RateSource:   source,
		Quote: loanmath.Quote{
			MonthlyPayment: loanmath.Round2(q.MonthlyPayment),
			TotalAmount:    loanmath.Round2(q.TotalAmount),
			TotalInterest:  loanmath.Round2(q.TotalInterest),
			IsValid:        true,
		},
		Schedule: loanmath.Schedule(req.Amount, rate, req.TermMonths, start),
	}

	if err := cache.SetJSON(ctx, s.cache, key, result, s.ttl); err != nil {
		utils.LogError("Ошибка записи расчета в кэш: %v", err)
	}
	return result, nil
}
