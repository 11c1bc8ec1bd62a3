// Package apiclient клиент HTTP API сервиса микрофинансирования.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"microfinance/models"
	"microfinance/services"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
	maxErrorBody    = 200
)

// TokenProvider возвращает JWT для очередного запроса. Пустая строка означает
// запрос без авторизации.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken провайдер с постоянным токеном
func StaticToken(token string) TokenProvider {
	return func(context.Context) (string, error) { return token, nil }
}

// Options параметры клиента
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	TokenProvider TokenProvider
	HTTPClient    *http.Client
}

// APIError ответ сервера со статусом не 2xx
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client обращается к API по базовому адресу из Options
type Client struct {
	base   *url.URL
	token  TokenProvider
	client *http.Client
}

// New создает клиента. BaseURL обязателен.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("apiclient: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: unsupported scheme %q", base.Scheme)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{base: base, token: opts.TokenProvider, client: httpClient}, nil
}

// Quote рассчитывает кредит через публичный калькулятор
func (c *Client) Quote(ctx context.Context, req services.QuoteRequest) (*services.QuoteResult, error) {
	var out services.QuoteResult
	if err := c.do(ctx, http.MethodPost, "/api/calculator/quote", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLoan возвращает кредит с графиком и журналом статусов
func (c *Client) GetLoan(ctx context.Context, id uint) (*services.LoanDetails, error) {
	var out services.LoanDetails
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/loans/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordRepayment регистрирует платеж по кредиту
func (c *Client) RecordRepayment(ctx context.Context, req services.RecordRepaymentRequest) (*models.Repayment, error) {
	var out models.Repayment
	if err := c.do(ctx, http.MethodPost, "/api/repayments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("apiclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("apiclient: token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

// errorMessage достает поле error из тела ответа, иначе обрезанное тело
func errorMessage(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	text := strings.TrimSpace(string(data))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}
