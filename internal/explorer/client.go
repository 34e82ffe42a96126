// Package explorer talks to Etherscan-compatible block explorer APIs.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
)

const (
	// IndexTimeout bounds how long WaitIndexed polls.
	IndexTimeout  = 2 * time.Minute
	VerifyTimeout = 5 * time.Minute
	PollInterval  = 5 * time.Second

	requestTimeout = 30 * time.Second

	statusOK = "1"

	codeFormatStandardJSON = "solidity-standard-json-input"

	resultPending  = "pending in queue"
	resultVerified = "pass - verified"
	resultFailed   = "fail"
	resultNoData   = "no data found"
	resultAlready  = "already verified"
)

type (
	Client struct {
		http    *resty.Client
		apiURL  string
		apiKey  string
		chainID int64
		clock   clockwork.Clock
		logger  *slog.Logger

		pollInterval  time.Duration
		indexTimeout  time.Duration
		verifyTimeout time.Duration
	}

	Option func(*Client)

	// VerificationRequest is a verifysourcecode submission in standard-JSON form.
	VerificationRequest struct {
		Address         common.Address
		SourceCode      string
		ContractName    string
		CompilerVersion string
		// ConstructorArgs is the ABI-encoded constructor arguments.
		ConstructorArgs []byte
	}

	// SourceInfo is what the explorer knows about a contract's source.
	SourceInfo struct {
		ContractName    string
		CompilerVersion string
		Verified        bool
	}

	envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}

	sourceCodeResult struct {
		SourceCode      string `json:"SourceCode"`
		ContractName    string `json:"ContractName"`
		CompilerVersion string `json:"CompilerVersion"`
	}
)

func WithChainID(chainID int64) Option {
	return func(c *Client) {
		c.chainID = chainID
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func NewClient(apiURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetTimeout(requestTimeout).
			SetHeader("Accept", "application/json"),
		apiURL:        apiURL,
		apiKey:        apiKey,
		clock:         clockwork.NewRealClock(),
		logger:        logger.Named("explorer"),
		pollInterval:  PollInterval,
		indexTimeout:  IndexTimeout,
		verifyTimeout: VerifyTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// IsIndexed reports whether the explorer knows the creation transaction of address.
func (c *Client) IsIndexed(ctx context.Context, address common.Address) (bool, error) {
	env, err := c.get(ctx, map[string]string{
		"module":            "contract",
		"action":            "getcontractcreation",
		"contractaddresses": address.Hex(),
	})
	if err != nil {
		return false, err
	}

	if env.Status != statusOK {
		if containsFold(env.Message, resultNoData) || containsFold(resultString(env.Result), resultNoData) {
			return false, nil
		}
		return false, env.apiError(http.StatusOK)
	}

	var creations []json.RawMessage
	if err := json.Unmarshal(env.Result, &creations); err != nil {
		return false, fmt.Errorf("failed to decode contract creation result: %w", err)
	}

	return len(creations) > 0, nil
}

// WaitIndexed polls IsIndexed until it succeeds or the index timeout elapses.
func (c *Client) WaitIndexed(ctx context.Context, address common.Address) error {
	deadline := c.clock.Now().Add(c.indexTimeout)
	log := c.logger.With("address", address.Hex())

	var lastErr error
	for {
		indexed, err := c.IsIndexed(ctx, address)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		switch {
		case err != nil:
			// rate limits and unsupported actions count as not indexed yet
			lastErr = err
			log.With("err", err.Error()).Warn("explorer index check failed")
		case indexed:
			log.Info("contract indexed by explorer")
			return nil
		default:
			log.Debug("contract not indexed yet")
		}

		if !c.clock.Now().Before(deadline) {
			if lastErr != nil {
				return fmt.Errorf("%w: %s after %s, last error: %w", ErrNotIndexed, address.Hex(), c.indexTimeout, lastErr)
			}
			return fmt.Errorf("%w: %s after %s", ErrNotIndexed, address.Hex(), c.indexTimeout)
		}

		if err := c.wait(ctx); err != nil {
			return err
		}
	}
}

// Verify submits source verification and returns the explorer's request GUID.
func (c *Client) Verify(ctx context.Context, req VerificationRequest) (string, error) {
	env, err := c.post(ctx, map[string]string{
		"module":                "contract",
		"action":                "verifysourcecode",
		"contractaddress":       req.Address.Hex(),
		"sourceCode":            req.SourceCode,
		"codeformat":            codeFormatStandardJSON,
		"contractname":          req.ContractName,
		"compilerversion":       req.CompilerVersion,
		"constructorArguements": common.Bytes2Hex(req.ConstructorArgs),
	})
	if err != nil {
		return "", err
	}

	result := resultString(env.Result)
	if env.Status != statusOK {
		if containsFold(result, resultAlready) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyVerified, req.Address.Hex())
		}
		return "", env.apiError(http.StatusOK)
	}

	c.logger.
		With("address", req.Address.Hex()).
		With("guid", result).
		Info("verification request submitted")

	return result, nil
}

// CheckStatus reports whether the verification request guid has passed.
// Results it does not recognise count as pending.
func (c *Client) CheckStatus(ctx context.Context, guid string) (bool, error) {
	env, err := c.get(ctx, map[string]string{
		"module": "contract",
		"action": "checkverifystatus",
		"guid":   guid,
	})
	if err != nil {
		return false, err
	}

	result := resultString(env.Result)
	switch {
	case containsFold(result, resultPending):
		return false, nil
	case containsFold(result, resultVerified):
		return true, nil
	case containsFold(result, resultAlready):
		return false, ErrAlreadyVerified
	case strings.HasPrefix(strings.ToLower(result), resultFailed):
		return false, fmt.Errorf("%w: %s", ErrVerificationFailed, result)
	case env.Status != statusOK:
		return false, env.apiError(http.StatusOK)
	}

	c.logger.With("guid", guid).With("result", result).Debug("unrecognised verification status, treating as pending")

	return false, nil
}

// WaitVerified polls CheckStatus until the request completes.
func (c *Client) WaitVerified(ctx context.Context, guid string) error {
	deadline := c.clock.Now().Add(c.verifyTimeout)

	for {
		done, err := c.CheckStatus(ctx, guid)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if !c.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: request %s still pending after %s", ErrVerificationFailed, guid, c.verifyTimeout)
		}

		c.logger.With("guid", guid).Debug("verification pending")
		if err := c.wait(ctx); err != nil {
			return err
		}
	}
}

// SourceInfo fetches the explorer's view of address's source code.
func (c *Client) SourceInfo(ctx context.Context, address common.Address) (SourceInfo, error) {
	env, err := c.get(ctx, map[string]string{
		"module":  "contract",
		"action":  "getsourcecode",
		"address": address.Hex(),
	})
	if err != nil {
		return SourceInfo{}, err
	}
	if env.Status != statusOK {
		return SourceInfo{}, env.apiError(http.StatusOK)
	}

	var results []sourceCodeResult
	if err := json.Unmarshal(env.Result, &results); err != nil {
		return SourceInfo{}, fmt.Errorf("failed to decode source code result: %w", err)
	}
	if len(results) == 0 {
		return SourceInfo{}, nil
	}

	return SourceInfo{
		ContractName:    results[0].ContractName,
		CompilerVersion: results[0].CompilerVersion,
		Verified:        results[0].SourceCode != "",
	}, nil
}

func (c *Client) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(c.pollInterval):
		return nil
	}
}

func (c *Client) get(ctx context.Context, params map[string]string) (envelope, error) {
	resp, err := c.request(ctx).SetQueryParams(params).Get(c.apiURL)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to call explorer %s: %w", params["action"], err)
	}
	return decode(resp)
}

func (c *Client) post(ctx context.Context, form map[string]string) (envelope, error) {
	resp, err := c.request(ctx).SetFormData(form).Post(c.apiURL)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to call explorer %s: %w", form["action"], err)
	}
	return decode(resp)
}

// request carries the API key and chain id in the query string for both GET and POST.
func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("apikey", c.apiKey)

	if c.chainID != 0 {
		req.SetQueryParam("chainid", strconv.FormatInt(c.chainID, 10))
	}

	return req
}

func decode(resp *resty.Response) (envelope, error) {
	if resp.IsError() {
		return envelope{}, &APIError{
			StatusCode: resp.StatusCode(),
			Message:    http.StatusText(resp.StatusCode()),
			Result:     strings.TrimSpace(resp.String()),
		}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return envelope{}, fmt.Errorf("failed to decode explorer response: %w", err)
	}

	return env, nil
}

func (e envelope) apiError(statusCode int) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    e.Message,
		Result:     resultString(e.Result),
	}
}

// resultString returns result as text when the explorer sent a JSON string.
func resultString(result json.RawMessage) string {
	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return ""
	}
	return s
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
