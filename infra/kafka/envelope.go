package kafka

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var ErrCorruptFrame = errors.New("kafka: corrupted chunk frame")

// EncodeFrame wraps a raw chunk frame for the wire: an 8-byte length+CRC
// header followed by a proto bytes envelope.
func EncodeFrame(frame []byte) ([]byte, error) {
	body, err := proto.Marshal(wrapperspb.Bytes(frame))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(body))
	binary.LittleEndian.PutUint32(out[:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(body))
	return append(out, body...), nil
}

// DecodeFrame unwraps EncodeFrame's output and returns the raw chunk frame.
func DecodeFrame(data []byte) ([]byte, error) {
	if len(data) < 8 {
		return nil, ErrCorruptFrame
	}
	body := data[8:]
	if uint32(len(body)) != binary.LittleEndian.Uint32(data[:4]) {
		return nil, ErrCorruptFrame
	}
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(data[4:8]) {
		return nil, ErrCorruptFrame
	}
	var pb wrapperspb.BytesValue
	if err := proto.Unmarshal(body, &pb); err != nil {
		return nil, err
	}
	return pb.Value, nil
}
