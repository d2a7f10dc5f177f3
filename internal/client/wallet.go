package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/httpclient"
)

// WalletCreditRequest is the payment service's add-or-deduct payload. A
// positive amount credits the wallet.
type WalletCreditRequest struct {
	Amount     float64  `json:"amount"`
	TxnType    string   `json:"txnType"`
	TxnDetail  string   `json:"txnDetail"`
	Remarks    string   `json:"remarks"`
	WalletType string   `json:"walletType"`
	HoldAmount *float64 `json:"holdAmount"`
}

// WalletClient is the gateway to the payment service's wallet API.
type WalletClient struct {
	http    HTTPDoer
	baseURL string
	token   string
}

// NewWalletClient creates a new wallet gateway.
func NewWalletClient(http HTTPDoer, baseURL, token string) *WalletClient {
	return &WalletClient{http: http, baseURL: baseURL, token: token}
}

// Credit adds an amount to a store wallet. The key is an idempotency token:
// the payment service rejects a repeated key, so a retried settlement can
// never double-credit.
func (c *WalletClient) Credit(ctx context.Context, storeID, key string, req WalletCreditRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal wallet request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/payments/wallet/addOrDeduct/STORE/%s?key=%s",
		c.baseURL, storeID, url.QueryEscape(key))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create wallet request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(internalTokenHeader, c.token)

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("call wallet service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return httpclient.ParseResponseError(resp, "wallet")
	}

	return nil
}

// GetWallets fetches wallet records for several stores in one call.
func (c *WalletClient) GetWallets(ctx context.Context, storeIDs []string) ([]domain.Wallet, error) {
	req := struct {
		StoreIDs []string `json:"storeIds"`
	}{StoreIDs: storeIDs}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal wallet request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/payments/wallet/internal", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create wallet request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(internalTokenHeader, c.token)

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call wallet service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "wallet")
	}

	var wallets []domain.Wallet
	if err := json.NewDecoder(resp.Body).Decode(&wallets); err != nil {
		return nil, fmt.Errorf("decode wallet response: %w", err)
	}
	return wallets, nil
}
