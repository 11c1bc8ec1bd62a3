package services

import (
	"gorm.io/gorm"
	"math"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination параметры страницы списка
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize подставляет значения по умолчанию и ограничивает размер страницы
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	switch {
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	case p.PageSize <= 0:
		p.PageSize = DefaultPageSize
	}
	return p
}

// Scope gorm-скоуп с offset и limit
func (p Pagination) Scope() func(db *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((p.Page - 1) * p.PageSize).Limit(p.PageSize)
	}
}

// PaginatedResponse ответ со страницей данных
type PaginatedResponse struct {
	Data        interface{} `json:"data"`
	TotalRows   int64       `json:"totalRows"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	PageSize    int         `json:"pageSize"`
}

func newPaginatedResponse(data interface{}, totalRows int64, p Pagination) PaginatedResponse {
	p = p.Normalize()

	totalPages := 0
	if totalRows > 0 {
		totalPages = int(math.Ceil(float64(totalRows) / float64(p.PageSize)))
	}

	return PaginatedResponse{
		Data:        data,
		TotalRows:   totalRows,
		TotalPages:  totalPages,
		CurrentPage: p.Page,
		PageSize:    p.PageSize,
	}
}
