package debuginfo

// FrameChangeKind enumerates the frame layout change rules.
type FrameChangeKind uint8

const (
	// CFA is computed from a new register.
	NewCFARegister FrameChangeKind = iota
	// CFA is at a new offset from its register.
	NewCFAOffset
	// A callee-saved register is stored at an offset from the CFA.
	RegisterAt
	// The return address is stored at an offset from the CFA.
	ReturnAddressAt
	// Remember the current layout (epilogue entry).
	Preserve
	// Return to the remembered layout.
	Restore
)

// FrameLayoutChange is one unwind rule.
type FrameLayoutChange struct {
	Kind      FrameChangeKind
	Register  uint16
	CFAOffset int64
}

// FrameLayoutEntry applies Change from Offset onward.
type FrameLayoutEntry struct {
	Offset CodeOffset
	Change FrameLayoutChange
}

// FrameLayout describes how a function's frame shape evolves across its
// prologue and epilogue.
type FrameLayout struct {
	Initial []FrameLayoutChange
	Entries []FrameLayoutEntry // sorted by Offset
}

// ChangesAt returns the rules in effect at off: the initial rules followed by
// every entry at or before off, with Preserve/Restore pairs applied.
func (l FrameLayout) ChangesAt(off CodeOffset) []FrameLayoutChange {
	changes := append([]FrameLayoutChange(nil), l.Initial...)
	var saved [][]FrameLayoutChange

	for _, e := range l.Entries {
		if e.Offset > off {
			break
		}
		switch e.Change.Kind {
		case Preserve:
			saved = append(saved, append([]FrameLayoutChange(nil), changes...))
		case Restore:
			if n := len(saved); n > 0 {
				changes = saved[n-1]
				saved = saved[:n-1]
			}
		default:
			changes = append(changes, e.Change)
		}
	}
	return changes
}

// FrameLayouts holds the layout of every defined function.
type FrameLayouts map[FuncIndex]FrameLayout

// FrameLayoutProvider supplies layouts to unwinders.
type FrameLayoutProvider interface {
	FrameLayout(fn FuncIndex) (FrameLayout, bool)
}

// FrameLayout implements FrameLayoutProvider.
func (f FrameLayouts) FrameLayout(fn FuncIndex) (FrameLayout, bool) {
	l, ok := f[fn]
	return l, ok
}
