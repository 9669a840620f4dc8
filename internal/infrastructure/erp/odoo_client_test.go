package erp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestOdooConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *OdooConfig
		wantErr error
	}{
		{
			name:    "valid config",
			config:  NewOdooConfig("https://erp.example.com", "dentalab", "sync_bot", "secret"),
			wantErr: nil,
		},
		{
			name:    "missing url",
			config:  NewOdooConfig("", "dentalab", "sync_bot", "secret"),
			wantErr: ErrOdooConfigMissingURL,
		},
		{
			name:    "invalid url",
			config:  NewOdooConfig("not a url", "dentalab", "sync_bot", "secret"),
			wantErr: ErrOdooConfigInvalidURL,
		},
		{
			name:    "missing database",
			config:  NewOdooConfig("https://erp.example.com", "", "sync_bot", "secret"),
			wantErr: ErrOdooConfigMissingDatabase,
		},
		{
			name:    "missing username",
			config:  NewOdooConfig("https://erp.example.com", "dentalab", "", "secret"),
			wantErr: ErrOdooConfigMissingUser,
		},
		{
			name:    "missing password",
			config:  NewOdooConfig("https://erp.example.com", "dentalab", "sync_bot", ""),
			wantErr: ErrOdooConfigMissingPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.True(t, tt.config.TimeoutSeconds > 0)
				assert.True(t, tt.config.PageSize > 0)
			}
		})
	}
}

func TestNewOdooConfig(t *testing.T) {
	config := NewOdooConfig("https://erp.example.com", "dentalab", "sync_bot", "secret")
	assert.Equal(t, "dentalab", config.Database)
	assert.Equal(t, 30, config.TimeoutSeconds)
	assert.Equal(t, 100, config.PageSize)
	assert.Equal(t, 3, config.MaxRetries)
}

// ---------------------------------------------------------------------------
// Mock JSON-RPC server
// ---------------------------------------------------------------------------

type rpcCall struct {
	Service string
	Method  string
	Args    []any
}

// mockOdooServer dispatches JSON-RPC calls to a handler returning either a
// result or a fault. It records every call it receives.
func mockOdooServer(t *testing.T, handle func(call rpcCall) (any, *rpcError)) (*httptest.Server, *[]rpcCall) {
	t.Helper()
	calls := &[]rpcCall{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jsonrpc", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		call := rpcCall{Service: req.Params.Service, Method: req.Params.Method, Args: req.Params.Args}
		*calls = append(*calls, call)

		result, fault := handle(call)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if fault != nil {
			resp["error"] = fault
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
	return server, calls
}

func newTestClient(t *testing.T, serverURL string) *OdooClient {
	t.Helper()
	config := NewOdooConfig(serverURL, "dentalab", "sync_bot", "secret")
	config.PageSize = 2
	config.RetryBaseDelayMillis = 1
	client, err := NewOdooClient(config, zap.NewNop())
	require.NoError(t, err)
	return client
}

func accessDeniedFault() *rpcError {
	return &rpcError{
		Code:    200,
		Message: "Odoo Server Error",
		Data:    rpcErrorData{Name: "odoo.exceptions.AccessDenied", Message: "Access Denied"},
	}
}

// ---------------------------------------------------------------------------
// Authentication Tests
// ---------------------------------------------------------------------------

func TestOdooClient_Authenticate(t *testing.T) {
	t.Run("success caches uid", func(t *testing.T) {
		server, calls := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
			require.Equal(t, "common", call.Service)
			require.Equal(t, "authenticate", call.Method)
			return 7, nil
		})
		defer server.Close()

		client := newTestClient(t, server.URL)
		uid, err := client.Authenticate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(7), uid)

		uid, err = client.Authenticate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(7), uid)
		// second Authenticate still re-validates against the server
		assert.Len(t, *calls, 2)
	})

	t.Run("bad credentials return false", func(t *testing.T) {
		server, _ := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
			return false, nil
		})
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.Authenticate(context.Background())
		assert.ErrorIs(t, err, sync.ErrAuth)
	})
}

// ---------------------------------------------------------------------------
// SearchRead Tests
// ---------------------------------------------------------------------------

func TestOdooClient_SearchRead(t *testing.T) {
	t.Run("paginates until short page", func(t *testing.T) {
		pages := [][]map[string]any{
			{{"id": 1, "name": "Clinica Norte"}, {"id": 2, "name": "Clinica Sur"}},
			{{"id": 3, "name": "Clinica Este"}},
		}
		page := 0
		server, _ := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
			if call.Service == "common" {
				return 7, nil
			}
			require.Equal(t, "execute_kw", call.Method)
			result := pages[page]
			page++
			return result, nil
		})
		defer server.Close()

		client := newTestClient(t, server.URL)
		var ids []int64
		err := client.SearchRead(context.Background(), sync.SearchQuery{
			Model:  "res.partner",
			Filter: sync.Filter{sync.Gt("customer_rank", 0)},
			Fields: []string{"name"},
			Order:  "id asc",
		}, func(record sync.ExternalRecord) error {
			ids = append(ids, record.ID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids)
	})

	t.Run("limit stops iteration", func(t *testing.T) {
		server, _ := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
			if call.Service == "common" {
				return 7, nil
			}
			return []map[string]any{{"id": 1}, {"id": 2}}, nil
		})
		defer server.Close()

		client := newTestClient(t, server.URL)
		count := 0
		err := client.SearchRead(context.Background(), sync.SearchQuery{
			Model: "product.product",
			Limit: 1,
		}, func(record sync.ExternalRecord) error {
			count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("callback error stops iteration", func(t *testing.T) {
		server, _ := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
			if call.Service == "common" {
				return 7, nil
			}
			return []map[string]any{{"id": 1}, {"id": 2}}, nil
		})
		defer server.Close()

		client := newTestClient(t, server.URL)
		wantErr := assert.AnError
		err := client.SearchRead(context.Background(), sync.SearchQuery{
			Model: "res.partner",
		}, func(record sync.ExternalRecord) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})
}

// ---------------------------------------------------------------------------
// Error Handling Tests
// ---------------------------------------------------------------------------

func TestOdooClient_ReauthenticatesOnce(t *testing.T) {
	authCount := 0
	executeCount := 0
	server, _ := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			authCount++
			return 7, nil
		}
		executeCount++
		if executeCount == 1 {
			return nil, accessDeniedFault()
		}
		return []map[string]any{}, nil
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.SearchRead(context.Background(), sync.SearchQuery{Model: "res.partner"},
		func(record sync.ExternalRecord) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, authCount)
	assert.Equal(t, 2, executeCount)
}

func TestOdooClient_RetriesTransportFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": 7})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	uid, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), uid)
	assert.Equal(t, 3, attempts)
}

func TestOdooClient_RemoteFaultNotRetried(t *testing.T) {
	faults := 0
	server, _ := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 7, nil
		}
		faults++
		return nil, &rpcError{
			Code:    200,
			Message: "Odoo Server Error",
			Data:    rpcErrorData{Name: "odoo.exceptions.ValidationError", Message: "bad value"},
		}
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Create(context.Background(), "res.partner", map[string]any{"name": "X"})
	assert.ErrorIs(t, err, sync.ErrRemote)
	assert.Equal(t, 1, faults)
}

// ---------------------------------------------------------------------------
// Write Path Tests
// ---------------------------------------------------------------------------

func TestOdooClient_Create(t *testing.T) {
	server, calls := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 7, nil
		}
		return 42, nil
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	id, err := client.Create(context.Background(), "res.partner",
		map[string]any{"name": "Clinica Andina", "email": "info@andina.example"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	last := (*calls)[len(*calls)-1]
	assert.Equal(t, "object", last.Service)
	assert.Equal(t, "res.partner", last.Args[3])
	assert.Equal(t, "create", last.Args[4])
}

func TestOdooClient_Write(t *testing.T) {
	server, calls := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 7, nil
		}
		return true, nil
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.Write(context.Background(), "res.partner", []int64{42},
		map[string]any{"ref": "CLI-001"})
	require.NoError(t, err)

	last := (*calls)[len(*calls)-1]
	assert.Equal(t, "write", last.Args[4])
}

// ---------------------------------------------------------------------------
// Capability Tests
// ---------------------------------------------------------------------------

func TestOdooClient_CheckCapabilities(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server, _ := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
			switch call.Method {
			case "version":
				return map[string]any{"server_version": "17.0"}, nil
			case "authenticate":
				return 7, nil
			default:
				return true, nil
			}
		})
		defer server.Close()

		client := newTestClient(t, server.URL)
		assert.NoError(t, client.CheckCapabilities(context.Background()))
	})

	t.Run("execute unavailable is fatal", func(t *testing.T) {
		server, _ := mockOdooServer(t, func(call rpcCall) (any, *rpcError) {
			switch call.Method {
			case "version":
				return map[string]any{"server_version": "17.0"}, nil
			case "authenticate":
				return 7, nil
			default:
				return nil, accessDeniedFault()
			}
		})
		defer server.Close()

		client := newTestClient(t, server.URL)
		err := client.CheckCapabilities(context.Background())
		assert.ErrorIs(t, err, sync.ErrCapability)
	})
}
