package browse

import (
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-traps/errors"
)

// parseArg converts user input to the raw stack encoding of t.
func parseArg(value string, t api.ValueType) (uint64, error) {
	value = strings.TrimSpace(value)
	switch t {
	case api.ValueTypeI32:
		v, err := strconv.ParseInt(value, 0, 32)
		if err != nil {
			return 0, errors.Unrecognized(errors.PhaseParse, "i32", value)
		}
		return api.EncodeI32(int32(v)), nil
	case api.ValueTypeI64:
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return 0, errors.Unrecognized(errors.PhaseParse, "i64", value)
		}
		return api.EncodeI64(v), nil
	case api.ValueTypeF32:
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return 0, errors.Unrecognized(errors.PhaseParse, "f32", value)
		}
		return api.EncodeF32(float32(v)), nil
	case api.ValueTypeF64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, errors.Unrecognized(errors.PhaseParse, "f64", value)
		}
		return api.EncodeF64(v), nil
	default:
		return 0, errors.Unsupported(errors.PhaseParse, "parameter type "+api.ValueTypeName(t))
	}
}

// formatValue renders a raw result of type t.
func formatValue(v uint64, t api.ValueType) string {
	switch t {
	case api.ValueTypeI32:
		return strconv.FormatInt(int64(api.DecodeI32(v)), 10)
	case api.ValueTypeI64:
		return strconv.FormatInt(int64(v), 10)
	case api.ValueTypeF32:
		return strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
	case api.ValueTypeF64:
		return strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
	default:
		return "0x" + strconv.FormatUint(v, 16)
	}
}
