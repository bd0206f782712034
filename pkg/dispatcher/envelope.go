// Package dispatcher routes invoke envelopes to registered command handlers.
package dispatcher

import "github.com/morezero/components/pkg/apperr"

// InvokeRequest is the envelope for an incoming invoke call.
type InvokeRequest struct {
	Method    string  `json:"method"`
	TraceID   *string `json:"trace_id"`
	ArgsEmpty bool    `json:"args_empty"`
	ArgsJSON  *string `json:"args_json"`
}

// InvokeResponse is the envelope returned for every invoke call.
// Application failures are carried in Error; the call itself still succeeds.
type InvokeResponse struct {
	Error       *apperr.Description `json:"error"`
	ResultEmpty bool                `json:"result_empty"`
	ResultJSON  *string             `json:"result_json"`
}

// NewInvokeRequest builds a request envelope; a nil args value sets args_empty.
func NewInvokeRequest(method, traceID string, argsJSON []byte) *InvokeRequest {
	req := &InvokeRequest{Method: method}
	if traceID != "" {
		req.TraceID = &traceID
	}
	if len(argsJSON) == 0 {
		req.ArgsEmpty = true
	} else {
		s := string(argsJSON)
		req.ArgsJSON = &s
	}
	return req
}

// GetTraceID returns the trace id or "".
func (r *InvokeRequest) GetTraceID() string {
	if r == nil || r.TraceID == nil {
		return ""
	}
	return *r.TraceID
}

// Args returns the JSON args or nil when the request has none.
func (r *InvokeRequest) Args() []byte {
	if r == nil || r.ArgsEmpty || r.ArgsJSON == nil {
		return nil
	}
	return []byte(*r.ArgsJSON)
}

// Result returns the JSON result or nil.
func (r *InvokeResponse) Result() []byte {
	if r == nil || r.ResultEmpty || r.ResultJSON == nil {
		return nil
	}
	return []byte(*r.ResultJSON)
}
