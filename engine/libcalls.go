package engine

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-traps/errors"
	"github.com/wippyai/wasm-traps/trap"
)

// LibModule is the import module name of the runtime library calls.
//
//	raise(code i32)         raises a Lib trap with code
//	div_s(a, b i32) i32     checked signed division
//	grow(pages i32) i32     grows memory 0, returns the previous size in pages
//
// Library faults are raised as panics carrying a *trap.Trap. wazero recovers
// them at the call boundary and Translate hands them back unchanged.
const LibModule = "wasmtrap"

var (
	i32x1 = []api.ValueType{api.ValueTypeI32}
	i32x2 = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
)

func instantiateLib(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(LibModule)

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(libRaise), i32x1, nil).
		WithParameterNames("code").
		Export("raise")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(libDivS), i32x2, i32x1).
		WithParameterNames("a", "b").
		Export("div_s")

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(libGrow), i32x1, i32x1).
		WithParameterNames("pages").
		Export("grow")

	return builder.Instantiate(ctx)
}

func libRaise(_ context.Context, _ api.Module, stack []uint64) {
	code := trap.Code(api.DecodeU32(stack[0]))
	if !code.Valid() {
		panic(trap.User(errors.InvalidDiscriminant(errors.PhaseHost, []string{LibModule, "raise"},
			uint64(code), trap.NumCodes-1)))
	}
	panic(trap.Lib(code))
}

func libDivS(_ context.Context, _ api.Module, stack []uint64) {
	a := api.DecodeI32(stack[0])
	b := api.DecodeI32(stack[1])
	switch {
	case b == 0:
		panic(trap.Lib(trap.IntegerDivisionByZero))
	case a == math.MinInt32 && b == -1:
		panic(trap.Lib(trap.IntegerOverflow))
	}
	stack[0] = api.EncodeI32(a / b)
}

func libGrow(_ context.Context, mod api.Module, stack []uint64) {
	mem := mod.Memory()
	if mem == nil {
		panic(trap.User(errors.NotFound(errors.PhaseHost, "memory", mod.Name())))
	}
	prev, ok := mem.Grow(api.DecodeU32(stack[0]))
	if !ok {
		panic(trap.OOM())
	}
	stack[0] = api.EncodeU32(prev)
}
