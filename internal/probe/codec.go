package probe

import (
	"NetSentinel/internal/model"
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket/layers"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the frame message exchanged between ns-probe and ns-sentinel.
//
//	message Frame {
//	  int64  timestamp_unix_nano = 1;
//	  uint32 link_type           = 2;
//	  bytes  data                = 3;
//	  uint32 wire_length         = 4;
//	}
const (
	fieldTimestamp  protowire.Number = 1
	fieldLinkType   protowire.Number = 2
	fieldData       protowire.Number = 3
	fieldWireLength protowire.Number = 4
)

// ErrMalformedFrame is returned when a message cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame message")

// EncodeFrame serializes a frame using the protobuf wire format.
func EncodeFrame(f model.RawFrame) []byte {
	b := make([]byte, 0, len(f.Data)+24)
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Timestamp.UnixNano()))
	b = protowire.AppendTag(b, fieldLinkType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.LinkType))
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, f.Data)
	if f.Length > 0 {
		b = protowire.AppendTag(b, fieldWireLength, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.Length))
	}
	return b
}

// DecodeFrame parses a message produced by EncodeFrame. Unknown fields are
// skipped. The returned frame references b.
func DecodeFrame(b []byte) (model.RawFrame, error) {
	var f model.RawFrame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, fmt.Errorf("%w: timestamp: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			f.Timestamp = time.Unix(0, int64(v))
			b = b[n:]
		case num == fieldLinkType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, fmt.Errorf("%w: link type: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			f.LinkType = layers.LinkType(v)
			b = b[n:]
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return f, fmt.Errorf("%w: data: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			f.Data = v
			b = b[n:]
		case num == fieldWireLength && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, fmt.Errorf("%w: wire length: %v", ErrMalformedFrame, protowire.ParseError(n))
			}
			f.Length = int(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return f, fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if len(f.Data) == 0 {
		return f, fmt.Errorf("%w: no data", ErrMalformedFrame)
	}
	if f.Length == 0 {
		f.Length = len(f.Data)
	}
	return f, nil
}
