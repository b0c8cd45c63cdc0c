package engine

import (
	"strconv"

	"github.com/wippyai/wasm-traps/errors"
)

// Backend selects the code generator used to run guest modules.
type Backend uint8

const (
	// Cranelift is the optimizing compiler.
	Cranelift Backend = iota
	// LLVM compiles ahead of time, when the module is loaded.
	LLVM
	// Singlepass trades code quality for fast startup.
	Singlepass
)

var backendNames = [...]string{
	Cranelift:  "cranelift",
	LLVM:       "llvm",
	Singlepass: "singlepass",
}

// Backends lists every backend in declaration order.
func Backends() []Backend {
	return []Backend{Cranelift, LLVM, Singlepass}
}

func (b Backend) String() string {
	if int(b) < len(backendNames) {
		return backendNames[b]
	}
	return "backend(" + strconv.FormatUint(uint64(b), 10) + ")"
}

// Flag returns the command-line switch that selects b.
func (b Backend) Flag() string {
	return "--" + b.String()
}

// ParseBackend accepts a backend name or its flag form.
func ParseBackend(s string) (Backend, error) {
	name := trimFlag(s)
	for i, n := range backendNames {
		if n == name {
			return Backend(i), nil
		}
	}
	return 0, errors.Unrecognized(errors.PhaseConfig, "backend", s)
}

// Strategy selects how compiled code is kept.
type Strategy uint8

const (
	// JIT compiles in memory for a single engine.
	JIT Strategy = iota
	// Native shares compiled code between engines of this process.
	Native
	// ObjectFile persists compiled code on disk.
	ObjectFile
)

var strategyNames = [...]string{
	JIT:        "jit",
	Native:     "native",
	ObjectFile: "object-file",
}

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{JIT, Native, ObjectFile}
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "strategy(" + strconv.FormatUint(uint64(s), 10) + ")"
}

// Flag returns the command-line switch that selects s.
func (s Strategy) Flag() string {
	return "--" + s.String()
}

// ParseStrategy accepts a strategy name or its flag form.
func ParseStrategy(s string) (Strategy, error) {
	name := trimFlag(s)
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, errors.Unrecognized(errors.PhaseConfig, "strategy", s)
}

// trimFlag drops one or two leading dashes.
func trimFlag(s string) string {
	for range 2 {
		if len(s) > 0 && s[0] == '-' {
			s = s[1:]
		}
	}
	return s
}
