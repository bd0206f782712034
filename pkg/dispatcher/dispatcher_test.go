package dispatcher

import (
	"encoding/json"
	"testing"

	"github.com/morezero/components/pkg/apperr"
)

func TestInvokeRequest_Unmarshal(t *testing.T) {
	raw := `{
		"method": "dummy.create_dummy",
		"trace_id": "trace-1",
		"args_empty": false,
		"args_json": "{\"dummy\":{\"key\":\"K\",\"content\":\"C\"}}"
	}`

	var req InvokeRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("dispatcher:dispatcher_test - failed to unmarshal: %v", err)
	}
	if req.Method != "dummy.create_dummy" {
		t.Errorf("dispatcher:dispatcher_test - expected method dummy.create_dummy, got %s", req.Method)
	}
	if req.GetTraceID() != "trace-1" {
		t.Errorf("dispatcher:dispatcher_test - expected trace-1, got %s", req.GetTraceID())
	}
	if string(req.Args()) != `{"dummy":{"key":"K","content":"C"}}` {
		t.Errorf("dispatcher:dispatcher_test - unexpected args %s", req.Args())
	}
}

func TestInvokeRequest_NullFields(t *testing.T) {
	var req InvokeRequest
	if err := json.Unmarshal([]byte(`{"method":"x.y","trace_id":null,"args_empty":true,"args_json":null}`), &req); err != nil {
		t.Fatalf("dispatcher:dispatcher_test - failed to unmarshal: %v", err)
	}
	if req.GetTraceID() != "" {
		t.Errorf("dispatcher:dispatcher_test - expected empty trace id, got %q", req.GetTraceID())
	}
	if req.Args() != nil {
		t.Errorf("dispatcher:dispatcher_test - expected nil args, got %s", req.Args())
	}
}

func TestNewInvokeRequest(t *testing.T) {
	req := NewInvokeRequest("svc.cmd", "", nil)
	if !req.ArgsEmpty || req.ArgsJSON != nil || req.TraceID != nil {
		t.Errorf("dispatcher:dispatcher_test - unexpected empty request %+v", req)
	}

	req = NewInvokeRequest("svc.cmd", "t-2", []byte(`{"a":1}`))
	if req.ArgsEmpty || req.GetTraceID() != "t-2" || string(req.Args()) != `{"a":1}` {
		t.Errorf("dispatcher:dispatcher_test - unexpected request %+v", req)
	}
}

func TestInvokeResponse_Marshal(t *testing.T) {
	result := `{"id":"1"}`
	resp := &InvokeResponse{ResultJSON: &result}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("dispatcher:dispatcher_test - failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("dispatcher:dispatcher_test - failed to unmarshal response: %v", err)
	}
	if decoded["error"] != nil {
		t.Errorf("dispatcher:dispatcher_test - expected null error, got %v", decoded["error"])
	}
	if decoded["result_empty"] != false {
		t.Errorf("dispatcher:dispatcher_test - expected result_empty=false, got %v", decoded["result_empty"])
	}
	if decoded["result_json"] != result {
		t.Errorf("dispatcher:dispatcher_test - expected result_json %s, got %v", result, decoded["result_json"])
	}
}

func TestInvokeResponse_ErrorFields(t *testing.T) {
	resp := &InvokeResponse{
		Error: apperr.Describe(apperr.NewInvocationError("t-1", "METHOD_NOT_FOUND", "no such method").
			WithDetails("method", "dummy.nope")),
		ResultEmpty: true,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("dispatcher:dispatcher_test - failed to marshal: %v", err)
	}

	var decoded struct {
		Error map[string]interface{} `json:"error"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("dispatcher:dispatcher_test - failed to unmarshal: %v", err)
	}
	for _, key := range []string{"category", "code", "trace_id", "status", "message", "details"} {
		if _, ok := decoded.Error[key]; !ok {
			t.Errorf("dispatcher:dispatcher_test - expected error field %q in %s", key, data)
		}
	}
	if resp.Result() != nil {
		t.Error("dispatcher:dispatcher_test - expected nil result")
	}
}
