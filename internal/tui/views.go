package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/dialin/internal/cli"
	"github.com/Veraticus/dialin/internal/model"
)

// View renders the current state.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	form := m.renderForm()
	right := cli.RenderDiagnosis(m.diagnosis)
	if m.analysis != "" {
		right = lipgloss.JoinVertical(lipgloss.Left, right, cli.RenderAnalysis(m.analysis))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, form, "  ", right)
	if m.width > 0 && m.width < lipgloss.Width(body) {
		body = lipgloss.JoinVertical(lipgloss.Left, form, right)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render(cli.CoffeeIcon+" Dial in"),
		m.renderTabs(),
		body,
		m.renderStatus(),
		m.help.View(m.keymap),
	)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, 2)
	for _, method := range []model.Method{model.MethodEspresso, model.MethodFilter} {
		style := m.theme.Tab
		if m.inputs.Method == method {
			style = m.theme.ActiveTab
		}
		tabs = append(tabs, style.Render(strings.ToUpper(string(method))))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n"
}

func (m Model) renderForm() string {
	var rows []string
	for _, id := range m.visibleFields() {
		label := m.theme.Label
		if id == m.focus {
			label = m.theme.FocusedLabel
		}
		rows = append(rows, label.Render(fieldLabels[id])+m.fields[id].View())
	}

	reading := m.inputs.Reading()
	rows = append(rows, "", m.theme.Subtitle.Render("Ratio "+reading.Ratio().String()))

	return m.theme.BorderedBox.Render(strings.Join(rows, "\n"))
}

func (m Model) renderStatus() string {
	switch {
	case m.lastError != nil:
		return m.theme.StatusError.Render(cli.ErrorIcon + " " + m.lastError.Error())
	case m.analyzing:
		return m.spinner.View() + " " + m.theme.StatusInfo.Render(m.status)
	case m.status != "":
		return m.theme.StatusSuccess.Render(cli.SuccessIcon + " " + m.status)
	default:
		return ""
	}
}
