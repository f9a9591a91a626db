// Package node implements the direct daemon client: JSON-RPC calls for block
// templates and submissions, chain polling, and ZMQ push notifications.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bardlex/gomc/pkg/circuit"
	"github.com/bardlex/gomc/pkg/errors"
	"github.com/bardlex/gomc/pkg/log"
	"github.com/bardlex/gomc/pkg/retry"
)

const rpcPath = "/json_rpc"

// RPCClient is a JSON-RPC 2.0 client for the node daemon. Calls carry basic
// auth and run behind a retry policy and a circuit breaker.
type RPCClient struct {
	endpoint       string
	username       string
	password       string
	httpClient     *http.Client
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
	logger         *log.Logger
}

// NewRPCClient creates a daemon RPC client for the given base URL
// (e.g. http://127.0.0.1:18081).
func NewRPCClient(url, username, password string, logger *log.Logger) (*RPCClient, error) {
	if url == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "rpc_client_creation",
			"node URL is required")
	}

	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	}

	return &RPCClient{
		endpoint:       url + rpcPath,
		username:       username,
		password:       password,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		circuitBreaker: circuit.New(cbConfig),
		retryConfig:    retry.RPCConfig(),
		logger:         logger.WithComponent("node_rpc"),
	}, nil
}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Call invokes a JSON-RPC method and unmarshals the result into out
func (c *RPCClient) Call(ctx context.Context, method string, params, out any) error {
	result, err := circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (json.RawMessage, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (json.RawMessage, error) {
			return c.post(ctx, method, params)
		})
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeProtocol, method,
			"failed to decode RPC result")
	}
	return nil
}

func (c *RPCClient) post(ctx context.Context, method string, params any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		ID:      "0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, method,
			"failed to marshal RPC request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, method,
			"failed to build RPC request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, method,
			"RPC request failed").WithContext("endpoint", c.endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, method,
			"failed to read RPC response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrorTypeConnection, method,
			fmt.Sprintf("RPC endpoint returned HTTP %d", resp.StatusCode))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeProtocol, method,
			"malformed RPC response")
	}
	if rpcResp.Error != nil {
		return nil, errors.New(errors.ErrorTypeProtocol, method,
			fmt.Sprintf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}

	c.logger.Debug("RPC call completed", "method", method, "result_bytes", len(rpcResp.Result))
	return rpcResp.Result, nil
}
