package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	stdsync "sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

const (
	jsonrpcPath     = "/jsonrpc"
	maxResponseSize = 16 << 20 // 16MB
)

// OdooClient implements the sync.ERPClient port over Odoo's JSON-RPC
// endpoint. One client is safe for concurrent use; the authenticated
// user ID is cached until a call fails with an access error, which
// triggers a single re-authentication before the call is failed.
type OdooClient struct {
	config *OdooConfig
	client *http.Client
	retry  *retryPolicy
	logger *zap.Logger

	mu  stdsync.Mutex
	uid int64

	reqID atomic.Int64
}

// NewOdooClient creates an Odoo JSON-RPC client
func NewOdooClient(config *OdooConfig, logger *zap.Logger) (*OdooClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &OdooClient{
		config: config,
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		retry:  newRetryPolicy(config.MaxRetries, time.Duration(config.RetryBaseDelayMillis)*time.Millisecond),
		logger: logger,
	}, nil
}

// Authenticate logs in and caches the user ID for subsequent calls
func (c *OdooClient) Authenticate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *OdooClient) authenticateLocked(ctx context.Context) (int64, error) {
	var raw json.RawMessage
	err := c.retry.Do(ctx, func() error {
		var callErr error
		raw, callErr = c.call(ctx, "common", "authenticate",
			c.config.Database, c.config.Username, c.config.Password, map[string]any{})
		return callErr
	})
	if err != nil {
		return 0, err
	}

	// Odoo returns false instead of a uid on bad credentials
	var uid int64
	if unmarshalErr := json.Unmarshal(raw, &uid); unmarshalErr != nil || uid == 0 {
		return 0, fmt.Errorf("%w: invalid credentials for user %s on database %s",
			sync.ErrAuth, c.config.Username, c.config.Database)
	}

	c.uid = uid
	c.logger.Info("authenticated with odoo",
		zap.String("database", c.config.Database),
		zap.Int64("uid", uid))
	return uid, nil
}

// CheckCapabilities verifies the server is reachable and the account can
// run execute_kw. Fails hard so misconfiguration surfaces at startup.
func (c *OdooClient) CheckCapabilities(ctx context.Context) error {
	var raw json.RawMessage
	err := c.retry.Do(ctx, func() error {
		var callErr error
		raw, callErr = c.call(ctx, "common", "version")
		return callErr
	})
	if err != nil {
		return fmt.Errorf("%w: version call failed: %v", sync.ErrCapability, err)
	}

	var version struct {
		ServerVersion string `json:"server_version"`
	}
	if unmarshalErr := json.Unmarshal(raw, &version); unmarshalErr != nil {
		return fmt.Errorf("%w: unexpected version response", sync.ErrCapability)
	}

	if _, err := c.executeKw(ctx, "res.partner", "check_access_rights",
		[]any{"read"}, map[string]any{"raise_exception": false}); err != nil {
		return fmt.Errorf("%w: execute_kw unavailable: %v", sync.ErrCapability, err)
	}

	c.logger.Info("odoo capability check passed",
		zap.String("server_version", version.ServerVersion))
	return nil
}

// SearchRead streams all matching records page by page in server order
func (c *OdooClient) SearchRead(ctx context.Context, query sync.SearchQuery, fn sync.RecordFunc) error {
	pageSize := c.config.PageSize
	if query.Limit > 0 && query.Limit < pageSize {
		pageSize = query.Limit
	}

	kwargs := map[string]any{
		"fields": query.Fields,
	}
	if query.Order != "" {
		kwargs["order"] = query.Order
	}

	offset := 0
	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		kwargs["offset"] = offset
		kwargs["limit"] = pageSize

		raw, err := c.executeKw(ctx, query.Model, "search_read",
			[]any{encodeFilter(query.Filter)}, kwargs)
		if err != nil {
			return err
		}

		var page []map[string]any
		if unmarshalErr := json.Unmarshal(raw, &page); unmarshalErr != nil {
			return fmt.Errorf("%w: malformed search_read response for %s: %v",
				sync.ErrRemote, query.Model, unmarshalErr)
		}

		for _, fields := range page {
			record, err := recordFromFields(fields)
			if err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return err
			}
			delivered++
			if query.Limit > 0 && delivered >= query.Limit {
				return nil
			}
		}

		if len(page) < pageSize {
			return nil
		}
		offset += len(page)
	}
}

// Create inserts a record and returns its external ID
func (c *OdooClient) Create(ctx context.Context, model string, fields map[string]any) (int64, error) {
	raw, err := c.executeKw(ctx, model, "create", []any{fields}, nil)
	if err != nil {
		return 0, err
	}
	var id int64
	if unmarshalErr := json.Unmarshal(raw, &id); unmarshalErr != nil {
		return 0, fmt.Errorf("%w: malformed create response for %s", sync.ErrRemote, model)
	}
	return id, nil
}

// Write updates existing records in place
func (c *OdooClient) Write(ctx context.Context, model string, ids []int64, fields map[string]any) error {
	_, err := c.executeKw(ctx, model, "write", []any{ids, fields}, nil)
	return err
}

// executeKw runs one model method through the object service, retrying
// transport failures and re-authenticating once on an access error.
func (c *OdooClient) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	uid, err := c.currentUID(ctx)
	if err != nil {
		return nil, err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	raw, err := c.execute(ctx, uid, model, method, args, kwargs)
	if err == nil || !isAccessErr(err) {
		return raw, err
	}

	c.logger.Warn("odoo session rejected, re-authenticating",
		zap.String("model", model),
		zap.String("method", method))
	c.mu.Lock()
	c.uid = 0
	uid, authErr := c.authenticateLocked(ctx)
	c.mu.Unlock()
	if authErr != nil {
		return nil, authErr
	}
	return c.execute(ctx, uid, model, method, args, kwargs)
}

func (c *OdooClient) execute(ctx context.Context, uid int64, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	callArgs := []any{c.config.Database, uid, c.config.Password, model, method, args, kwargs}
	var raw json.RawMessage
	err := c.retry.Do(ctx, func() error {
		var callErr error
		raw, callErr = c.call(ctx, "object", "execute_kw", callArgs...)
		return callErr
	})
	return raw, err
}

func (c *OdooClient) currentUID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}
	return c.authenticateLocked(ctx)
}

// call performs one JSON-RPC round trip without retries
func (c *OdooClient) call(ctx context.Context, service, method string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.reqID.Add(1),
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.URL+jsonrpcPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", sync.ErrTransport, service, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: server returned status %d", sync.ErrTransport, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", sync.ErrRemote, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", sync.ErrTransport, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: malformed rpc response: %v", sync.ErrRemote, err)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.IsAccessError() {
			return nil, fmt.Errorf("%w: %s", sync.ErrAuth, rpcResp.Error.description())
		}
		return nil, fmt.Errorf("%w: %s", sync.ErrRemote, rpcResp.Error.description())
	}
	return rpcResp.Result, nil
}

// encodeFilter renders the filter as Odoo's [[field, op, value], ...] domain
func encodeFilter(filter sync.Filter) []any {
	domain := make([]any, 0, len(filter))
	for _, cond := range filter {
		domain = append(domain, []any{cond.Field, cond.Operator, cond.Value})
	}
	return domain
}

// recordFromFields extracts the record ID and leaves the rest as fields
func recordFromFields(fields map[string]any) (sync.ExternalRecord, error) {
	idVal, ok := fields["id"]
	if !ok {
		return sync.ExternalRecord{}, fmt.Errorf("%w: record without id field", sync.ErrRemote)
	}
	idFloat, ok := idVal.(float64)
	if !ok {
		return sync.ExternalRecord{}, fmt.Errorf("%w: record id is not numeric", sync.ErrRemote)
	}
	return sync.ExternalRecord{ID: int64(idFloat), Fields: fields}, nil
}

func isAccessErr(err error) bool {
	return errors.Is(err, sync.ErrAuth)
}
