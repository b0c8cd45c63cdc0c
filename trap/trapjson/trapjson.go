// Package trapjson is a structured textual codec for trap codes and traps.
//
// Codes are encoded as their tags. Traps are JSON objects; addresses are hex
// strings so that 64-bit values survive JavaScript consumers:
//
//	{"kind":"wasm","pc":"0x1000","code":"heap_get_oob","backtrace":["0x401000"]}
package trapjson

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-traps/errors"
	"github.com/wippyai/wasm-traps/trap"
)

type document struct {
	Message   *string  `json:"message,omitempty"`
	Kind      string   `json:"kind"`
	PC        string   `json:"pc,omitempty"`
	Code      string   `json:"code,omitempty"`
	Backtrace []string `json:"backtrace,omitempty"`
}

// MarshalCode encodes c as a JSON string holding its tag.
func MarshalCode(c trap.Code) ([]byte, error) {
	if !c.Valid() {
		return nil, errors.InvalidDiscriminant(errors.PhaseEncode, []string{"code"}, uint64(c), trap.NumCodes-1)
	}
	return json.Marshal(c.String())
}

// UnmarshalCode decodes a JSON string holding a tag.
func UnmarshalCode(data []byte) (trap.Code, error) {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return 0, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "trap code")
	}
	return trap.ParseCode(tag)
}

// Marshal encodes t as a JSON object.
func Marshal(t *trap.Trap) ([]byte, error) {
	ev := t.Evidence()

	doc := document{Kind: ev.Kind.String()}
	if ev.HasCode {
		if !ev.Code.Valid() {
			return nil, errors.InvalidDiscriminant(errors.PhaseEncode, []string{"code"}, uint64(ev.Code), trap.NumCodes-1)
		}
		doc.Code = ev.Code.String()
	}
	if ev.Kind == trap.KindWasm {
		doc.PC = formatAddr(ev.PC)
	}
	for _, pc := range ev.Frames {
		doc.Backtrace = append(doc.Backtrace, formatAddr(pc))
	}
	if ev.Err != nil {
		doc.Message = &ev.Message
	}

	return json.Marshal(doc)
}

// Unmarshal decodes a JSON object produced by Marshal.
func Unmarshal(data []byte) (*trap.Trap, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "trap document")
	}

	kind, err := trap.ParseKind(doc.Kind)
	if err != nil {
		return nil, err
	}

	ev := trap.Evidence{Kind: kind}

	if doc.Code != "" {
		ev.Code, err = trap.ParseCode(doc.Code)
		if err != nil {
			return nil, err
		}
		ev.HasCode = true
	}

	if doc.PC != "" {
		ev.PC, err = parseAddr("pc", doc.PC)
		if err != nil {
			return nil, err
		}
	}

	for i, s := range doc.Backtrace {
		pc, err := parseAddr("backtrace["+strconv.Itoa(i)+"]", s)
		if err != nil {
			return nil, err
		}
		ev.Frames = append(ev.Frames, pc)
	}

	if doc.Message != nil {
		ev.Message = *doc.Message
		ev.Err = &trap.RemoteError{Message: ev.Message}
	}

	return trap.FromEvidence(ev)
}

func formatAddr(pc uintptr) string {
	return "0x" + strconv.FormatUint(uint64(pc), 16)
}

func parseAddr(field, s string) (uintptr, error) {
	hex, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(field).
			Input(s).
			Detail("address must be 0x-prefixed hex").
			Build()
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(field).
			Input(s).
			Cause(err).
			Build()
	}
	return uintptr(v), nil
}
