package grpcserver

import "fmt"

// Frame is a raw wire frame crossing the gRPC boundary. The snapshot and
// request layouts are already byte-exact contracts, so no protoc-generated
// marshaling sits between them and the transport.
type Frame []byte

// rawCodec passes frames through verbatim.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	f, ok := v.(*Frame)
	if !ok {
		return nil, fmt.Errorf("grpcserver: raw codec cannot marshal %T", v)
	}
	return *f, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	f, ok := v.(*Frame)
	if !ok {
		return fmt.Errorf("grpcserver: raw codec cannot unmarshal into %T", v)
	}
	*f = append((*f)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return "mbo-raw" }
