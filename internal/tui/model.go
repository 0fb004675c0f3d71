package tui

import (
	"context"
	"errors"
	"slices"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/dialin/internal/calibration"
	"github.com/Veraticus/dialin/internal/common"
	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/model"
	"github.com/Veraticus/dialin/internal/tui/themes"
)

type fieldID int

const (
	fieldMachine fieldID = iota
	fieldGrinder
	fieldDose
	fieldYield
	fieldClicks
	fieldRoast
	fieldTime
	fieldCrema
	fieldTaste
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldMachine: "Machine",
	fieldGrinder: "Grinder",
	fieldDose:    "Dose (g)",
	fieldYield:   "Yield (g)",
	fieldClicks:  "Grind clicks",
	fieldRoast:   "Roast",
	fieldTime:    "Time (s)",
	fieldCrema:   "Crema",
	fieldTaste:   "Taste 1-3",
}

var fieldPlaceholders = [fieldCount]string{
	fieldDose:   "14",
	fieldYield:  "28",
	fieldClicks: "8",
	fieldRoast:  "light/medium/dark",
	fieldTime:   "28",
	fieldCrema:  "ideal/pale/bubbly/dark",
	fieldTaste:  "1 sour, 2 balanced, 3 bitter",
}

// Model holds the calibrate form state.
type Model struct {
	ctx       context.Context
	theme     themes.Theme
	analyzer  Analyzer
	save      SaveFunc
	lastError error
	keymap    KeyMap
	help      help.Model
	spinner   spinner.Model
	inputs    model.InputState
	status    string
	analysis  string
	fields    [fieldCount]textinput.Model
	diagnosis model.Diagnosis
	focus     fieldID
	width     int
	height    int
	analyzing bool
	quitting  bool

	// analysisCtx belongs to the request numbered analysisSeq. Results
	// carrying any other number are dropped.
	analysisCtx    context.Context
	cancelAnalysis context.CancelCauseFunc
	analysisSeq    int
}

func newModel(ctx context.Context, cfg Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	h := help.New()
	h.ShowAll = cfg.ShowHelp

	m := Model{
		ctx:      ctx,
		theme:    cfg.Theme,
		analyzer: cfg.Analyzer,
		save:     cfg.Save,
		keymap:   DefaultKeyMap(),
		help:     h,
		spinner:  s,
		inputs:   cfg.Inputs,
		width:    cfg.Width,
		height:   cfg.Height,
		focus:    fieldDose,
	}
	if !m.inputs.Method.Valid() {
		m.inputs.Method = model.MethodEspresso
	}

	for i := range m.fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 64
		ti.Width = 28
		ti.Placeholder = fieldPlaceholders[i]
		m.fields[i] = ti
	}
	m.loadFields()
	m.fields[m.focus].Focus()
	m.recompute()
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case analysisDoneMsg:
		if msg.seq != m.analysisSeq || !m.analyzing {
			return m, nil
		}
		m.analyzing = false
		if m.cancelAnalysis != nil {
			m.cancelAnalysis(context.Canceled)
			m.cancelAnalysis = nil
		}
		if msg.err != nil {
			m.lastError = msg.err
			m.status = ""
			return m, nil
		}
		m.lastError = nil
		m.analysis = msg.html
		m.status = "AI analysis ready"
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.lastError = msg.err
			m.status = ""
			return m, nil
		}
		m.lastError = nil
		m.status = "Saved"
		return m, nil

	case spinner.TickMsg:
		if !m.analyzing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.stopAnalysis(context.Canceled)
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Next):
		return m, m.moveFocus(1)

	case key.Matches(msg, m.keymap.Prev):
		return m, m.moveFocus(-1)

	case key.Matches(msg, m.keymap.ToggleMethod):
		m.toggleMethod()
		return m, nil

	case key.Matches(msg, m.keymap.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keymap.Analyze):
		if m.analyzer == nil {
			m.lastError = errors.New("AI analysis is not configured")
			return m, nil
		}
		m.startAnalysis()
		m.lastError = nil
		m.status = "Asking the AI..."
		return m, tea.Batch(m.spinner.Tick, m.analyze())

	case key.Matches(msg, m.keymap.Save):
		if m.save == nil {
			m.lastError = errors.New("saving is not configured")
			return m, nil
		}
		return m, m.saveInputs()
	}

	before := *m.target(m.focus)
	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	m.storeField(m.focus)
	if *m.target(m.focus) != before {
		m.stopAnalysis(common.ErrSuperseded)
	}
	m.recompute()
	return m, cmd
}

// visibleFields lists the fields of the selected method in display order.
func (m *Model) visibleFields() []fieldID {
	ids := make([]fieldID, 0, fieldCount)
	for id := fieldID(0); id < fieldCount; id++ {
		if id == fieldCrema && m.inputs.Method != model.MethodEspresso {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (m *Model) moveFocus(delta int) tea.Cmd {
	ids := m.visibleFields()
	i := slices.Index(ids, m.focus)
	if i < 0 {
		i = 0
	}
	i = (i + delta + len(ids)) % len(ids)
	return m.setFocus(ids[i])
}

func (m *Model) setFocus(id fieldID) tea.Cmd {
	m.fields[m.focus].Blur()
	m.focus = id
	return m.fields[id].Focus()
}

func (m *Model) toggleMethod() {
	if m.inputs.Method == model.MethodFilter {
		m.inputs.Method = model.MethodEspresso
	} else {
		m.inputs.Method = model.MethodFilter
	}
	if m.focus == fieldCrema && m.inputs.Method != model.MethodEspresso {
		m.setFocus(fieldTaste)
	}
	m.stopAnalysis(common.ErrSuperseded)
	m.analysis = ""
	m.loadFields()
	m.recompute()
}

// target returns the form value backing a field for the selected method.
func (m *Model) target(id fieldID) *string {
	p := &m.inputs.Espresso
	if m.inputs.Method == model.MethodFilter {
		p = &m.inputs.Filter
	}
	switch id {
	case fieldMachine:
		return &m.inputs.Machine
	case fieldGrinder:
		return &m.inputs.Grinder
	case fieldDose:
		return &p.Dose
	case fieldYield:
		return &p.CupYield
	case fieldClicks:
		return &p.Clicks
	case fieldRoast:
		return &p.Roast
	case fieldTime:
		return &p.ExtractionTime
	case fieldCrema:
		return &p.Crema
	default:
		return &p.Taste
	}
}

func (m *Model) loadFields() {
	for id := fieldID(0); id < fieldCount; id++ {
		m.fields[id].SetValue(*m.target(id))
	}
}

func (m *Model) storeField(id fieldID) {
	*m.target(id) = m.fields[id].Value()
}

func (m *Model) recompute() {
	m.diagnosis = calibration.Diagnose(m.inputs.Reading())
}

// startAnalysis supersedes any pending request and opens a new one.
func (m *Model) startAnalysis() {
	m.stopAnalysis(common.ErrSuperseded)
	m.analysisCtx, m.cancelAnalysis = context.WithCancelCause(m.ctx)
	m.analyzing = true
}

// stopAnalysis cancels the pending request, if any, and makes sure its
// result is ignored when it arrives.
func (m *Model) stopAnalysis(cause error) {
	m.analysisSeq++
	if m.cancelAnalysis != nil {
		m.cancelAnalysis(cause)
		m.cancelAnalysis = nil
	}
	if m.analyzing {
		m.analyzing = false
		m.status = ""
	}
}

func (m Model) analyze() tea.Cmd {
	ctx := m.analysisCtx
	if ctx == nil {
		ctx = m.ctx
	}
	seq := m.analysisSeq
	analyzer := m.analyzer
	in := llm.InputFromState(m.inputs)
	d := m.diagnosis
	in.Diagnosis = &d
	return func() tea.Msg {
		html, err := analyzer.Analyze(ctx, in, nil)
		return analysisDoneMsg{seq: seq, html: html, err: err}
	}
}

func (m Model) saveInputs() tea.Cmd {
	ctx := m.ctx
	save := m.save
	inputs := m.inputs
	return func() tea.Msg {
		return savedMsg{err: save(ctx, inputs)}
	}
}

// Inputs returns the current form state.
func (m Model) Inputs() model.InputState {
	return m.inputs
}

// Diagnosis returns the diagnosis of the current form state.
func (m Model) Diagnosis() model.Diagnosis {
	return m.diagnosis
}
