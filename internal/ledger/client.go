package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/time/rate"
)

// AccountInfo is the decoded result of an account read. A nil *AccountInfo
// means the account does not exist.
type AccountInfo struct {
	Owner    Pubkey
	Lamports uint64
	Data     []byte
}

// Client is the read/submit capability the runtime needs from one execution
// environment. Two instances exist per process: base layer and rollup.
type Client interface {
	LatestBlockhash(ctx context.Context) (Blockhash, error)
	AccountInfo(ctx context.Context, account Pubkey) (*AccountInfo, error)
	SendTransaction(ctx context.Context, tx *Transaction) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) error
	Endpoint() string
}

// RPCError is a structured error returned by the remote endpoint, as opposed
// to a transport failure.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

var ErrConfirmTimeout = errors.New("transaction confirmation timed out")

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCClient talks JSON-RPC 2.0 over HTTP to one ledger endpoint. Outgoing
// requests share a token-bucket limiter so a polling loop cannot starve the
// endpoint.
type RPCClient struct {
	endpoint   string
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	commitment string

	confirmPollInterval time.Duration
	confirmAttempts     int
}

type RPCOption func(*RPCClient)

func WithHTTPClient(h *http.Client) RPCOption {
	return func(c *RPCClient) { c.http = h }
}

func WithRateLimit(rps float64, burst int) RPCOption {
	return func(c *RPCClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithLogger(logger *slog.Logger) RPCOption {
	return func(c *RPCClient) { c.logger = logger }
}

func WithConfirmPolicy(interval time.Duration, attempts int) RPCOption {
	return func(c *RPCClient) {
		c.confirmPollInterval = interval
		c.confirmAttempts = attempts
	}
}

func NewRPCClient(endpoint string, opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		endpoint:            endpoint,
		http:                &http.Client{Timeout: 60 * time.Second},
		limiter:             rate.NewLimiter(rate.Limit(30), 60),
		logger:              slog.New(slog.NewJSONHandler(io.Discard, nil)),
		commitment:          "confirmed",
		confirmPollInterval: time.Second,
		confirmAttempts:     30,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RPCClient) Endpoint() string { return c.endpoint }

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &RPCError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("malformed rpc response: %w", err)
	}
	if parsed.Error != nil {
		c.logger.Warn("rpc call failed", "method", method, "code", parsed.Error.Code)
		return parsed.Error
	}
	if out != nil {
		return json.Unmarshal(parsed.Result, out)
	}
	return nil
}

func (c *RPCClient) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []any{map[string]string{"commitment": c.commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return Blockhash{}, err
	}
	return BlockhashFromBase58(result.Value.Blockhash)
}

func (c *RPCClient) AccountInfo(ctx context.Context, account Pubkey) (*AccountInfo, error) {
	var result struct {
		Value *struct {
			Owner    string   `json:"owner"`
			Lamports uint64   `json:"lamports"`
			Data     []string `json:"data"`
		} `json:"value"`
	}
	params := []any{account.String(), map[string]string{"encoding": "base64", "commitment": c.commitment}}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}
	owner, err := PubkeyFromBase58(result.Value.Owner)
	if err != nil {
		return nil, err
	}
	info := &AccountInfo{Owner: owner, Lamports: result.Value.Lamports}
	if len(result.Value.Data) > 0 {
		info.Data, err = base64.StdEncoding.DecodeString(result.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("malformed account data: %w", err)
		}
	}
	return info, nil
}

func (c *RPCClient) SendTransaction(ctx context.Context, tx *Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	var signature string
	params := []any{
		base58.Encode(tx.Serialize()),
		map[string]any{"encoding": "base58", "preflightCommitment": c.commitment},
	}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

func (c *RPCClient) ConfirmTransaction(ctx context.Context, signature string) error {
	for attempt := 0; attempt < c.confirmAttempts; attempt++ {
		var result struct {
			Value []*struct {
				ConfirmationStatus string `json:"confirmationStatus"`
				Err                any    `json:"err"`
			} `json:"value"`
		}
		params := []any{[]string{signature}}
		if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
			return err
		}
		if len(result.Value) > 0 && result.Value[0] != nil {
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain", signature)
			}
			if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.confirmPollInterval):
		}
	}
	return ErrConfirmTimeout
}

// MeasureLatency times one recency-token fetch against the endpoint.
func (c *RPCClient) MeasureLatency(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.LatestBlockhash(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
