// Package trapwire is a compact binary codec for trap codes and traps.
//
// The format uses protobuf wire encoding so archives can be read by any
// protobuf decoder with the matching schema:
//
//	message Trap {
//	  uint32 kind = 1;
//	  uint32 code = 2;            // present iff a code is attached
//	  uint64 pc = 3;              // wasm traps only
//	  repeated uint64 frames = 4; // packed
//	  bytes message = 5;          // user traps with an error
//	}
//
// A bare trap code is a single varint.
package trapwire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wippyai/wasm-traps/errors"
	"github.com/wippyai/wasm-traps/trap"
)

const (
	fieldKind    protowire.Number = 1
	fieldCode    protowire.Number = 2
	fieldPC      protowire.Number = 3
	fieldFrames  protowire.Number = 4
	fieldMessage protowire.Number = 5
)

// AppendCode appends the encoding of c to b.
func AppendCode(b []byte, c trap.Code) []byte {
	return protowire.AppendVarint(b, uint64(c))
}

// EncodeCode returns the encoding of c.
func EncodeCode(c trap.Code) []byte {
	return AppendCode(nil, c)
}

// DecodeCode decodes a code. The whole input must be consumed.
func DecodeCode(b []byte) (trap.Code, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, protowire.ParseError(n), "trap code")
	}
	if n != len(b) {
		return 0, errors.InvalidData(errors.PhaseDecode, []string{"code"}, "trailing bytes after trap code")
	}
	return checkCode(v)
}

// Append appends the encoding of t to b.
func Append(b []byte, t *trap.Trap) []byte {
	ev := t.Evidence()

	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ev.Kind))

	if ev.HasCode {
		b = protowire.AppendTag(b, fieldCode, protowire.VarintType)
		b = AppendCode(b, ev.Code)
	}

	if ev.Kind == trap.KindWasm {
		b = protowire.AppendTag(b, fieldPC, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(ev.PC))
	}

	if len(ev.Frames) > 0 {
		var packed []byte
		for _, pc := range ev.Frames {
			packed = protowire.AppendVarint(packed, uint64(pc))
		}
		b = protowire.AppendTag(b, fieldFrames, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}

	if ev.Err != nil {
		b = protowire.AppendTag(b, fieldMessage, protowire.BytesType)
		b = protowire.AppendString(b, ev.Message)
	}

	return b
}

// Encode returns the encoding of t.
func Encode(t *trap.Trap) []byte {
	return Append(nil, t)
}

// Decode rebuilds a trap. Unknown fields are skipped.
func Decode(b []byte) (*trap.Trap, error) {
	var (
		ev      trap.Evidence
		hasKind bool
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, parseError("tag", n)
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, parseError("kind", n)
			}
			if v > uint64(trap.KindOOM) {
				return nil, errors.InvalidDiscriminant(errors.PhaseDecode, []string{"kind"}, v, uint64(trap.KindOOM))
			}
			ev.Kind = trap.Kind(v)
			hasKind = true
			b = b[n:]

		case num == fieldCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, parseError("code", n)
			}
			code, err := checkCode(v)
			if err != nil {
				return nil, err
			}
			ev.Code = code
			ev.HasCode = true
			b = b[n:]

		case num == fieldPC && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, parseError("pc", n)
			}
			ev.PC = uintptr(v)
			b = b[n:]

		case num == fieldFrames && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, parseError("frames", n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, parseError("frames", m)
				}
				ev.Frames = append(ev.Frames, uintptr(v))
				packed = packed[m:]
			}
			b = b[n:]

		case num == fieldFrames && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, parseError("frames", n)
			}
			ev.Frames = append(ev.Frames, uintptr(v))
			b = b[n:]

		case num == fieldMessage && typ == protowire.BytesType:
			msg, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, parseError("message", n)
			}
			ev.Err = &trap.RemoteError{Message: msg}
			ev.Message = msg
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, parseError("unknown field", n)
			}
			b = b[n:]
		}
	}

	if !hasKind {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"kind"}, "missing trap kind")
	}
	return trap.FromEvidence(ev)
}

func checkCode(v uint64) (trap.Code, error) {
	if v >= trap.NumCodes {
		return 0, errors.InvalidDiscriminant(errors.PhaseDecode, []string{"code"}, v, trap.NumCodes-1)
	}
	return trap.Code(v), nil
}

func parseError(field string, n int) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(field).
		Cause(protowire.ParseError(n)).
		Build()
}
