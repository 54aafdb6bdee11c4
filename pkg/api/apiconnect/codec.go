// Package apiconnect wires the api messages into Connect handlers and
// clients. Every handler and client is built with the JSON codec below.
package apiconnect

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// CodecName is the Connect codec name, selected by Content-Type
// application/json (unary) and application/connect+json (streaming).
const CodecName = "json"

// Codec marshals api messages with encoding/json.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// WithJSON registers Codec on a handler or client.
func WithJSON() connect.Option {
	return connect.WithCodec(Codec{})
}
