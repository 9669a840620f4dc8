package erp

import (
	"encoding/json"
	"strings"
)

// rpcRequest is the JSON-RPC 2.0 envelope Odoo expects on /jsonrpc
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// rpcError carries the server-side fault. Odoo puts the exception class
// name in Data.Name, e.g. "odoo.exceptions.AccessDenied".
type rpcError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    rpcErrorData `json:"data"`
}

type rpcErrorData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Debug   string `json:"debug"`
}

// IsAccessError reports whether the fault is an authentication or
// authorization failure rather than a generic server error.
func (e *rpcError) IsAccessError() bool {
	name := e.Data.Name
	return strings.Contains(name, "AccessDenied") ||
		strings.Contains(name, "AccessError") ||
		strings.Contains(name, "SessionExpired")
}

func (e *rpcError) description() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}
