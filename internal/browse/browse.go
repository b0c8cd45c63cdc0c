// Package browse is the interactive mode of wasmtrap: a terminal UI that lists
// the trap taxonomy and, when a module is given, calls its exports and shows
// how each call ended.
package browse

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasm-traps/engine"
	"github.com/wippyai/wasm-traps/errors"
	"github.com/wippyai/wasm-traps/trap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Config configures an interactive session.
type Config struct {
	Input  io.Reader
	Output io.Writer

	// Path is the module whose exports can be called. Empty shows only the
	// taxonomy.
	Path   string
	Engine engine.Config
}

// Run blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	m := New(cfg)
	defer m.close()

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}

type modelState int

const (
	stateCodes modelState = iota
	stateSelectFunc
	stateInputArgs
	stateShowResult
)

// Model is the bubbletea model of the interactive session.
type Model struct {
	err       error
	searchErr error
	callErr   error
	engine    *engine.Engine
	module    *engine.Module
	instance  *engine.Instance
	cfg       Config
	result    string
	funcs     []engine.Export
	inputs    []textinput.Model
	search    textinput.Model
	code      int
	selected  int
	focusIdx  int
	state     modelState
	loaded    bool
}

// New creates the model. The module, if any, is loaded by Init.
func New(cfg Config) *Model {
	search := textinput.New()
	search.Prompt = "tag: "
	search.Placeholder = "int_divz"
	search.Width = 20
	search.Focus()

	return &Model{
		cfg:    cfg,
		search: search,
		state:  stateCodes,
		loaded: cfg.Path == "",
	}
}

type loadedMsg struct {
	err    error
	engine *engine.Engine
	module *engine.Module
	funcs  []engine.Export
}

type callResultMsg struct {
	err    error
	result string
}

func (m *Model) Init() tea.Cmd {
	if m.cfg.Path == "" {
		return textinput.Blink
	}
	return tea.Batch(textinput.Blink, m.loadModule)
}

func (m *Model) loadModule() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.cfg.Path)
	if err != nil {
		return loadedMsg{err: err}
	}

	eng, err := engine.NewEngineWithConfig(ctx, &m.cfg.Engine)
	if err != nil {
		return loadedMsg{err: err}
	}

	mod, err := eng.Load(ctx, data)
	if err != nil {
		eng.Close(ctx)
		return loadedMsg{err: err}
	}

	funcs, err := mod.Exports(ctx)
	if err != nil {
		eng.Close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{engine: eng, module: mod, funcs: funcs}
}

func (m *Model) close() {
	ctx := context.Background()
	if m.instance != nil {
		m.instance.Close(ctx)
		m.instance = nil
	}
	if m.engine != nil {
		m.engine.Close(ctx)
		m.engine = nil
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateCodes && m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "tab":
			switch m.state {
			case stateCodes:
				if len(m.funcs) > 0 {
					m.search.Blur()
					m.state = stateSelectFunc
				}
				return m, nil
			case stateSelectFunc:
				m.state = stateCodes
				return m, m.search.Focus()
			case stateInputArgs:
				if len(m.inputs) > 1 {
					m.inputs[m.focusIdx].Blur()
					m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
					m.inputs[m.focusIdx].Focus()
				}
				return m, nil
			}

		case "up":
			m.move(-1)
			return m, nil

		case "down":
			m.move(1)
			return m, nil

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.callErr = nil
				return m, nil
			}

		case "esc":
			switch m.state {
			case stateCodes:
				m.search.SetValue("")
				m.searchErr = nil
				return m, nil
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
				return m, nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.callErr = nil
				return m, nil
			}
		}

	case loadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.engine = msg.engine
		m.module = msg.module
		m.funcs = msg.funcs
		return m, nil

	case callResultMsg:
		m.result = msg.result
		m.callErr = msg.err
		m.state = stateShowResult
		return m, nil
	}

	switch m.state {
	case stateCodes:
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.lookup(m.search.Value())
		return m, cmd

	case stateInputArgs:
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *Model) move(delta int) {
	switch m.state {
	case stateCodes:
		m.code = min(max(m.code+delta, 0), trap.NumCodes-1)
	case stateSelectFunc:
		m.selected = min(max(m.selected+delta, 0), len(m.funcs)-1)
	}
}

// lookup selects the code whose tag is s. Empty input keeps the selection.
func (m *Model) lookup(s string) {
	if s == "" {
		m.searchErr = nil
		return
	}
	code, err := trap.ParseCode(s)
	if err != nil {
		m.searchErr = err
		return
	}
	m.searchErr = nil
	m.code = int(code)
}

func (m *Model) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = api.ValueTypeName(p)
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *Model) callFunction() tea.Msg {
	ctx := context.Background()

	if m.instance == nil {
		if m.module == nil {
			return callResultMsg{err: errors.NotInitialized(errors.PhaseRuntime, "module")}
		}
		inst, err := m.module.Instantiate(ctx, nil)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.instance = inst
	}

	f := m.funcs[m.selected]
	args := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseArg(input.Value(), f.Params[i])
		if err != nil {
			return callResultMsg{err: err}
		}
		args[i] = v
	}

	results, err := m.instance.Call(ctx, f.Name, args...)
	if err != nil {
		// proc_exit closes the instance.
		var exitErr *sys.ExitError
		if stderrors.As(err, &exitErr) {
			m.instance = nil
		}
		return callResultMsg{err: err}
	}

	vals := make([]string, len(results))
	for i, r := range results {
		vals[i] = formatValue(r, f.Results[i])
	}
	return callResultMsg{result: strings.Join(vals, ", ")}
}

func (m *Model) View() string {
	if m.err != nil && m.state != stateCodes {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Trap Browser"))
	if m.cfg.Path != "" {
		b.WriteString(" ")
		b.WriteString(m.cfg.Path)
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateCodes:
		for i, c := range trap.Codes() {
			line := fmt.Sprintf("%2d  %-16s %s", uint32(c), c.String(), c.Message())
			if i == m.code {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.search.View())
		if m.searchErr != nil {
			b.WriteString("  ")
			b.WriteString(errorStyle.Render(m.searchErr.Error()))
		}
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
		}
		help := "↑/↓ select • type a tag to jump • esc clear • ctrl+c quit"
		switch {
		case !m.loaded:
			help = "loading module… • " + help
		case len(m.funcs) > 0:
			help = "tab exports • " + help
		}
		b.WriteString(helpStyle.Render(help))

	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatFunc(f)))
			} else {
				b.WriteString("  " + formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • tab codes • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(api.ValueTypeName(f.Params[i])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
		if m.callErr != nil {
			b.WriteString(describe(m.callErr))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatFunc(f engine.Export) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = typeStyle.Render(api.ValueTypeName(p))
	}
	result := ""
	if len(f.Results) > 0 {
		results := make([]string, len(f.Results))
		for i, r := range f.Results {
			results[i] = typeStyle.Render(api.ValueTypeName(r))
		}
		result = " -> " + strings.Join(results, ", ")
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

// describe renders how a call failed.
func describe(err error) string {
	t, ok := trap.From(err)
	if !ok {
		var exitErr *sys.ExitError
		if stderrors.As(err, &exitErr) {
			return resultStyle.Render(fmt.Sprintf("exited with status %d", exitErr.ExitCode()))
		}
		return errorStyle.Render(fmt.Sprintf("Error: %v", err))
	}

	var b strings.Builder
	b.WriteString(errorStyle.Render(t.Error()))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "kind:   %s\n", t.Kind())
	if code, ok := t.Code(); ok {
		fmt.Fprintf(&b, "code:   %s (%d)\n", funcStyle.Render(code.String()), uint32(code))
	}
	if pc, ok := t.PC(); ok {
		fmt.Fprintf(&b, "pc:     %#x\n", pc)
	}
	if bt, ok := t.Backtrace(); ok {
		fmt.Fprintf(&b, "frames: %d\n", bt.Len())
	}
	return strings.TrimRight(b.String(), "\n")
}
