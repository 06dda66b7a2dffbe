package solscan

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/pkg/httpjson"
)

type Config struct {
	APIToken string  `env:"API_TOKEN, required"`
	URL      string  `env:"URL, default=https://pro-api.solscan.io"`
	RPS      float64 `env:"RPS, default=5"`
}

// Client talks to the solscan pro API v1.
type Client struct {
	api *httpjson.Client
}

func New(cfg Config, l *zap.Logger) *Client {
	return &Client{
		api: httpjson.New(
			"solscan",
			cfg.URL,
			l,
			httpjson.WithHeader("token", cfg.APIToken),
			httpjson.WithRateLimit(cfg.RPS, 1),
		),
	}
}

// AccountTransactions returns one page of the account history, newest first, strictly older than beforeHash when it's set.
func (c *Client) AccountTransactions(ctx context.Context, account string, limit int, beforeHash string) ([]HistoryEntry, error) {
	params := url.Values{}
	params.Set("account", account)
	params.Set("limit", strconv.Itoa(limit))
	if beforeHash != "" {
		params.Set("beforeHash", beforeHash)
	}

	var page []HistoryEntry
	if err := c.api.Get(ctx, "/v1.0/account/transactions", params, &page); err != nil {
		return nil, fmt.Errorf("account transactions: %w", err)
	}

	return page, nil
}

// TransactionDetail returns the provider's detail for one hash as is.
func (c *Client) TransactionDetail(ctx context.Context, hash string) (*TransactionDetail, error) {
	var detail TransactionDetail
	if err := c.api.Get(ctx, "/v1.0/transaction/"+url.PathEscape(hash), nil, &detail); err != nil {
		return nil, fmt.Errorf("transaction detail %s: %w", hash, err)
	}

	return &detail, nil
}
