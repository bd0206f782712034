// Package rpc exposes dispatch tables over gRPC and calls them remotely.
//
// The wire contract is a single unary method, /commandable.Commandable/invoke,
// whose request and response are the dispatcher envelopes encoded as JSON.
package rpc

import (
	"google.golang.org/grpc/encoding"

	"github.com/morezero/components/pkg/commsutil"
)

// CodecName is the gRPC content-subtype used for envelopes.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return commsutil.EncodePayload(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return commsutil.DecodePayload(data, v) }

func (jsonCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
