package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mememind-backend/internal/model"
)

var ErrCatalogUnavailable = errors.New("template catalog unavailable")

type catalogResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Memes []model.Template `json:"memes"`
	} `json:"data"`
}

// CatalogClient 只读地拉取第三方模板目录
type CatalogClient struct {
	url    string
	client *http.Client
}

func NewCatalogClient(url string, client *http.Client) *CatalogClient {
	return &CatalogClient{
		url:    url,
		client: client,
	}
}

func (c *CatalogClient) Fetch(ctx context.Context) ([]model.Template, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var body catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	if !body.Success {
		return nil, fmt.Errorf("%w: success=false", ErrCatalogUnavailable)
	}

	return body.Data.Memes, nil
}
