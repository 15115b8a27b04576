package trace

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

type Op uint8

const (
	OpInsert Op = iota + 1
	OpRemove
	OpCount
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	case OpCount:
		return "count"
	default:
		return "unknown"
	}
}

// Record is one list operation. Result is 1/0 for removes (found or
// not), the observed count for counts and 0 for inserts.
type Record struct {
	Op     Op
	Seq    uint64
	Value  int64
	Result int64
}

const (
	fieldValue  protowire.Number = 1
	fieldResult protowire.Number = 2
)

func encodePayload(r *Record) []byte {
	b := protowire.AppendTag(nil, fieldValue, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(r.Value))
	if r.Result != 0 {
		b = protowire.AppendTag(b, fieldResult, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(r.Result))
	}
	return b
}

func decodePayload(b []byte, r *Record) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "trace: payload tag")
		}
		b = b[n:]

		if typ != protowire.VarintType {
			// unknown field from a newer writer
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.Wrap(protowire.ParseError(n), "trace: skip field")
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "trace: payload varint")
		}
		b = b[n:]

		switch num {
		case fieldValue:
			r.Value = protowire.DecodeZigZag(v)
		case fieldResult:
			r.Result = protowire.DecodeZigZag(v)
		}
	}
	return nil
}
