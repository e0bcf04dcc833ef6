package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/IlyasAtabaev731/finance/internal/domain/models"
	"github.com/shopspring/decimal"
)

// Client talks to an Alpha Vantage compatible GLOBAL_QUOTE endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (c *Client) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	const op = "quote.Client.Lookup"

	symbol = Normalize(symbol)
	if symbol == "" {
		return nil, ErrNotFound
	}

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var result globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	switch {
	case result.Note != "":
		return nil, fmt.Errorf("%s: rate limited: %s", op, result.Note)
	case result.Information != "":
		return nil, fmt.Errorf("%s: rate limited: %s", op, result.Information)
	case result.ErrorMessage != "":
		return nil, ErrNotFound
	case result.GlobalQuote.Price == "":
		return nil, ErrNotFound
	}

	price, err := decimal.NewFromString(result.GlobalQuote.Price)
	if err != nil {
		return nil, fmt.Errorf("%s: parse price %q: %w", op, result.GlobalQuote.Price, err)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%s: non-positive price %s", op, price)
	}

	canonical := result.GlobalQuote.Symbol
	if canonical == "" {
		canonical = symbol
	}

	// GLOBAL_QUOTE carries no company name
	return &models.Quote{Name: canonical, Symbol: canonical, Price: price}, nil
}
