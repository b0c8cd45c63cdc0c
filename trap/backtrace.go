package trap

import (
	"runtime"
	"slices"
)

const initialFrames = 32

// Backtrace is a native call stack captured at one point in time.
//
// Frames are kept exactly as the stack walk returned them. Nothing is resolved
// until Resolve is called.
type Backtrace struct {
	pcs []uintptr
}

// Frame is a resolved backtrace entry.
type Frame struct {
	Function string
	File     string
	PC       uintptr
	Line     int
}

// CaptureBacktrace walks the calling goroutine's stack. skip 0 makes the caller
// of CaptureBacktrace the first frame. The walk completes before returning and
// the whole stack is kept.
func CaptureBacktrace(skip int) Backtrace {
	buf := make([]uintptr, initialFrames)
	for {
		n := runtime.Callers(skip+2, buf)
		if n < len(buf) {
			return Backtrace{pcs: buf[:n:n]}
		}
		buf = make([]uintptr, len(buf)*2)
	}
}

// BacktraceFrom wraps addresses obtained elsewhere, such as a decoded archive.
func BacktraceFrom(pcs []uintptr) Backtrace {
	if len(pcs) == 0 {
		return Backtrace{}
	}
	return Backtrace{pcs: slices.Clone(pcs)}
}

// Frames returns a copy of the raw return addresses, innermost first.
func (b Backtrace) Frames() []uintptr {
	return slices.Clone(b.pcs)
}

func (b Backtrace) Len() int {
	return len(b.pcs)
}

func (b Backtrace) IsEmpty() bool {
	return len(b.pcs) == 0
}

// PC returns the innermost frame, or 0 for an empty backtrace.
func (b Backtrace) PC() uintptr {
	if len(b.pcs) == 0 {
		return 0
	}
	return b.pcs[0]
}

// Equal reports whether both backtraces hold the same frames.
func (b Backtrace) Equal(other Backtrace) bool {
	return slices.Equal(b.pcs, other.pcs)
}

// Resolve symbolizes the frames. Inlined calls expand into several frames.
// Addresses that do not belong to this process resolve to a frame with only
// PC set.
func (b Backtrace) Resolve() []Frame {
	if len(b.pcs) == 0 {
		return nil
	}

	frames := make([]Frame, 0, len(b.pcs))
	start := 0
	for i, pc := range b.pcs {
		if pc != 0 && runtime.FuncForPC(pc-1) != nil {
			continue
		}
		frames = appendFrames(frames, b.pcs[start:i])
		frames = append(frames, Frame{PC: pc})
		start = i + 1
	}
	return appendFrames(frames, b.pcs[start:])
}

// appendFrames resolves a run of local addresses together so that
// CallersFrames can account for inlining across them.
func appendFrames(frames []Frame, pcs []uintptr) []Frame {
	if len(pcs) == 0 {
		return frames
	}
	iter := runtime.CallersFrames(pcs)
	for {
		f, more := iter.Next()
		frames = append(frames, Frame{
			Function: f.Function,
			File:     f.File,
			PC:       f.PC,
			Line:     f.Line,
		})
		if !more {
			return frames
		}
	}
}
