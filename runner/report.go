package runner

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero/sys"
	"golang.org/x/term"

	"github.com/wippyai/wasm-traps/debuginfo"
	"github.com/wippyai/wasm-traps/trap"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// isTerminal reports whether w is a terminal, which enables styled output.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type painter bool

func (p painter) render(s lipgloss.Style, text string) string {
	if !p {
		return text
	}
	return s.Render(text)
}

// writeCodes prints the trap taxonomy, one code per line.
func writeCodes(w io.Writer, styled bool) {
	p := painter(styled)
	fmt.Fprintln(w, p.render(headerStyle, fmt.Sprintf("%-4s %-16s %s", "code", "tag", "message")))
	for _, c := range trap.Codes() {
		tag := fmt.Sprintf("%-16s", c.String())
		fmt.Fprintf(w, "%-4d %s %s\n", uint32(c), p.render(tagStyle, tag), c.Message())
	}
}

// writeReport describes how a failed run ended.
func writeReport(w io.Writer, err error, verbose, styled bool) {
	p := painter(styled)

	var exitErr *sys.ExitError
	if stderrors.As(err, &exitErr) {
		if exitErr.ExitCode() != 0 {
			fmt.Fprintln(w, p.render(dimStyle, fmt.Sprintf("exit status %d", exitErr.ExitCode())))
		}
		return
	}

	t, ok := trap.From(err)
	if !ok {
		fmt.Fprintln(w, p.render(errorStyle, "Error: "+err.Error()))
		return
	}

	fmt.Fprintln(w, p.render(errorStyle, "trap: "+t.Error()))
	fmt.Fprintf(w, "  kind:    %s\n", t.Kind())
	if code, ok := t.Code(); ok {
		fmt.Fprintf(w, "  code:    %s (%s)\n", p.render(tagStyle, code.String()), code.Message())
	}
	if pc, ok := t.PC(); ok {
		fmt.Fprintf(w, "  pc:      %#x\n", pc)
	}
	bt, ok := t.Backtrace()
	if !ok {
		return
	}
	fmt.Fprintf(w, "  frames:  %d\n", bt.Len())
	if !verbose {
		return
	}
	addrs := debuginfo.Addresses(t)
	raw := make([]string, len(addrs))
	for i, a := range addrs {
		raw[i] = fmt.Sprintf("%#x", a)
	}
	fmt.Fprintf(w, "  raw:     %s\n", strings.Join(raw, " "))
	for _, f := range bt.Resolve() {
		fmt.Fprintln(w, p.render(dimStyle, "    at "+formatFrame(f)))
	}
}

func formatFrame(f trap.Frame) string {
	if f.Function == "" {
		return fmt.Sprintf("%#x", f.PC)
	}
	var b strings.Builder
	b.WriteString(f.Function)
	if f.File != "" {
		fmt.Fprintf(&b, " (%s:%d)", f.File, f.Line)
	}
	return b.String()
}
