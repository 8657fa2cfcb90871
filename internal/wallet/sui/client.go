// Package sui is a minimal JSON-RPC client for the Sui network, hand-written
// because no published Go SDK exists for it: suix_getBalance, suix_getCoins,
// unsafe_transferSui, and sui_executeTransactionBlock, following the same
// request/response envelope style as this codebase's other raw-HTTP API clients.
package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const suiNativeDecimals = 9

// Client speaks the Sui JSON-RPC surface over plain net/http.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// NewClient creates a Sui JSON-RPC client against rpcURL.
func NewClient(rpcURL string) *Client {
	return &Client{rpcURL: rpcURL, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("sui: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sui: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sui: request %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sui: %s returned status %d", method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("sui: decode %s response: %w", method, err)
	}

	if envelope.Error != nil {
		return fmt.Errorf("sui: %s rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("sui: unmarshal %s result: %w", method, err)
		}
	}

	return nil
}

type balanceResult struct {
	TotalBalance string `json:"totalBalance"`
}

// GetBalance returns the total SUI balance (in MIST) held by address.
func (c *Client) GetBalance(ctx context.Context, address string) (string, error) {
	var result balanceResult
	if err := c.call(ctx, "suix_getBalance", []any{address}, &result); err != nil {
		return "", err
	}
	return result.TotalBalance, nil
}

type CoinObject struct {
	CoinObjectID string `json:"coinObjectId"`
	Balance      string `json:"balance"`
}

type coinsResult struct {
	Data []CoinObject `json:"data"`
}

// GetCoins lists SUI coin objects owned by address, used to pick a gas
// object and a transfer source for unsafe_transferSui.
func (c *Client) GetCoins(ctx context.Context, address string) ([]CoinObject, error) {
	var result coinsResult
	if err := c.call(ctx, "suix_getCoins", []any{address, nil, nil, nil}, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

type transferResult struct {
	TxBytes string `json:"txBytes"`
}

// UnsafeTransferSui builds an unsigned transfer-SUI transaction via the
// node's transaction-builder RPC. amountMist is the transfer amount in MIST;
// suiObjectID is the SUI coin object the transfer draws from.
func (c *Client) UnsafeTransferSui(ctx context.Context, signerAddress, suiObjectID, gasBudget, recipient, amountMist string) (string, error) {
	var result transferResult
	err := c.call(ctx, "unsafe_transferSui", []any{signerAddress, suiObjectID, gasBudget, recipient, amountMist}, &result)
	if err != nil {
		return "", err
	}
	return result.TxBytes, nil
}

type executeResult struct {
	Digest  string `json:"digest"`
	Effects struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
}

// ExecuteTransactionBlock submits a signed transaction (base64 tx bytes plus
// signatures) and waits for its effects, returning the transaction digest.
func (c *Client) ExecuteTransactionBlock(ctx context.Context, txBytesBase64 string, signatures []string) (string, error) {
	options := map[string]bool{"showEffects": true}
	var result executeResult

	err := c.call(ctx, "sui_executeTransactionBlock",
		[]any{txBytesBase64, signatures, options, "WaitForLocalExecution"}, &result)
	if err != nil {
		return "", err
	}

	if result.Effects.Status.Status != "success" {
		return result.Digest, fmt.Errorf("sui: transaction failed: %s", result.Effects.Status.Error)
	}

	return result.Digest, nil
}
