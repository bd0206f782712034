package commsutil

import (
	"testing"

	"github.com/morezero/components/pkg/dispatcher"
)

func TestEncodeDecode_InvokeEnvelope(t *testing.T) {
	req := dispatcher.NewInvokeRequest("dummy.get_dummy_by_id", "trace-1", []byte(`{"dummy_id":"1"}`))

	data, err := EncodePayload(req)
	if err != nil {
		t.Fatalf("commsutil:codec_test - encode failed: %v", err)
	}

	var decoded dispatcher.InvokeRequest
	if err := DecodePayload(data, &decoded); err != nil {
		t.Fatalf("commsutil:codec_test - decode failed: %v", err)
	}
	if decoded.Method != req.Method || decoded.GetTraceID() != "trace-1" {
		t.Errorf("commsutil:codec_test - decoded %+v", decoded)
	}
	if string(decoded.Args()) != `{"dummy_id":"1"}` {
		t.Errorf("commsutil:codec_test - args = %s", decoded.Args())
	}
}

func TestEncodePayload_Unserializable(t *testing.T) {
	if _, err := EncodePayload(make(chan int)); err == nil {
		t.Fatal("commsutil:codec_test - expected error for channel")
	}
}

func TestDecodePayload_Invalid(t *testing.T) {
	for _, data := range []string{"", "{invalid}"} {
		var target map[string]string
		if err := DecodePayload([]byte(data), &target); err == nil {
			t.Errorf("commsutil:codec_test - expected error for %q", data)
		}
	}
}
