// Package client holds the HTTP gateways to the order, store, and payment
// services. Each gateway wraps the shared retrying client and translates
// non-2xx responses into AppErrors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests. Both
// httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// internalTokenHeader carries the shared secret on service-to-service calls.
const internalTokenHeader = "X-Internal-Token"

// OrderClient is the gateway to the order service.
type OrderClient struct {
	http    HTTPDoer
	baseURL string
	token   string
}

// NewOrderClient creates a new order service gateway.
func NewOrderClient(http HTTPDoer, baseURL, token string) *OrderClient {
	return &OrderClient{http: http, baseURL: baseURL, token: token}
}

// GetConsumerCart fetches a consumer's current cart.
func (c *OrderClient) GetConsumerCart(ctx context.Context, userID string) (*domain.Order, error) {
	var order domain.Order
	err := c.getJSON(ctx, fmt.Sprintf("%s/orders/internal/cart/%s", c.baseURL, userID), &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetFranchiseCart fetches a store's current order cart.
func (c *OrderClient) GetFranchiseCart(ctx context.Context, storeID string) (*domain.Order, error) {
	var order domain.Order
	err := c.getJSON(ctx, fmt.Sprintf("%s/orders/franchise/internal/cart/%s", c.baseURL, storeID), &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetFranchiseOrder fetches a placed store order by id.
func (c *OrderClient) GetFranchiseOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := c.getJSON(ctx, fmt.Sprintf("%s/orders/franchise/%s/backoffice", c.baseURL, orderID), &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetEffectiveBillAmounts fetches the per-store effective bill report for
// one calendar day. Stores with no orders that day are absent from the
// result.
func (c *OrderClient) GetEffectiveBillAmounts(ctx context.Context, date time.Time, storeIDs []string) ([]domain.SettlementOrder, error) {
	req := struct {
		Date     string   `json:"date"`
		StoreIDs []string `json:"storeIds"`
	}{
		Date:     date.Format("2006-01-02"),
		StoreIDs: storeIDs,
	}

	var out []domain.SettlementOrder
	err := c.postJSON(ctx, c.baseURL+"/orders/franchise/internal/effective-bill-amount", req, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) getJSON(ctx context.Context, url string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set(internalTokenHeader, c.token)

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("call order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, "order")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode order response: %w", err)
	}
	return nil
}

func (c *OrderClient) postJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(internalTokenHeader, c.token)

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("call order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, "order")
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode order response: %w", err)
		}
	}
	return nil
}

// StoreClient is the gateway to the store service.
type StoreClient struct {
	http    HTTPDoer
	baseURL string
	token   string
}

// NewStoreClient creates a new store service gateway.
func NewStoreClient(http HTTPDoer, baseURL, token string) *StoreClient {
	return &StoreClient{http: http, baseURL: baseURL, token: token}
}

// GetStore fetches a store record.
func (c *StoreClient) GetStore(ctx context.Context, storeID string) (*domain.StoreInfo, error) {
	url := fmt.Sprintf("%s/store-app/internal/store/%s", c.baseURL, storeID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create store request: %w", err)
	}
	httpReq.Header.Set(internalTokenHeader, c.token)

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call store service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "store")
	}

	var store domain.StoreInfo
	if err := json.NewDecoder(resp.Body).Decode(&store); err != nil {
		return nil, fmt.Errorf("decode store response: %w", err)
	}
	return &store, nil
}
