// Package cli renders diagnoses and documents for the terminal using lipgloss.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/dialin/internal/model"
)

var (
	// PrimaryColor is the main theme color (crema brown).
	PrimaryColor = lipgloss.Color("#C67C4E")
	// SuccessColor marks a dialed-in shot.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor marks a grind or recipe change.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor indicates errors.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3")
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(16)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	CoffeeIcon  = "☕"
	RobotIcon   = "🤖"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the coffee icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(CoffeeIcon + " " + title)
}

// RenderBox renders content in a styled box.
func RenderBox(title, content string) string {
	boxTitle := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, boxTitle, content))
}

func field(label, value string) string {
	return LabelStyle.Render(label) + value
}

// RenderReading lists the measured values of a reading.
func RenderReading(r model.ExtractionReading) string {
	lines := []string{
		field("Method", string(r.Method)),
		field("Dose", model.FormatNumber(r.Dose)+" g"),
		field("Yield", model.FormatNumber(r.CupYield)+" g"),
		field("Ratio", r.Ratio().String()),
		field("Grind", fmt.Sprintf("%d clicks", r.Clicks)),
		field("Roast", string(r.Roast)),
		field("Time", fmt.Sprintf("%d s", r.ExtractionTime)),
	}
	if r.Method == model.MethodEspresso {
		lines = append(lines, field("Crema", string(r.Crema)))
	}
	lines = append(lines, field("Taste", tasteLabel(r.Taste)))
	return strings.Join(lines, "\n")
}

// RenderDiagnosis renders a rule-engine diagnosis as a bordered card.
func RenderDiagnosis(d model.Diagnosis) string {
	var b strings.Builder

	b.WriteString(diagnosisStyle(d.Kind).Render(d.Title))
	b.WriteString("\n\n")
	if d.Text != "" {
		b.WriteString(d.Text)
		b.WriteString("\n\n")
	}
	for _, item := range d.Items {
		b.WriteString("  • ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("Target %d-%d s  ·  ratio %s  ·  yield %s g",
		d.Target.Low, d.Target.High, d.Ratio, model.FormatNumber(d.Yield))))
	b.WriteString("\n")
	b.WriteString(BoldStyle.Render(suggestion(d)))

	return RenderBox(CoffeeIcon+" Diagnosis", b.String())
}

// RenderAnalysis renders an AI diagnosis. The HTML is reduced to plain text.
func RenderAnalysis(htmlText string) string {
	return RenderBox(RobotIcon+" AI analysis", HTMLToText(htmlText))
}

// RenderDocument summarizes a stored document.
func RenderDocument(doc model.Document, source string) string {
	var b strings.Builder
	b.WriteString(field("Source", source) + "\n")
	b.WriteString(field("Schema", fmt.Sprintf("v%d", doc.SchemaVersion)) + "\n")
	b.WriteString(field("Method", string(doc.Inputs.Method)) + "\n")
	b.WriteString(field("Machine", orDash(doc.Inputs.Machine)) + "\n")
	b.WriteString(field("Grinder", orDash(doc.Inputs.Grinder)) + "\n")
	b.WriteString(field("Accessories", orDash(strings.Join(doc.Inputs.Accessories, ", "))) + "\n")

	b.WriteString("\n" + BoldStyle.Render(fmt.Sprintf("Setups (%d)", len(doc.Setups))) + "\n")
	for _, s := range doc.Setups {
		marker := "  "
		if s.ID == doc.ActiveSetupID {
			marker = SuccessStyle.Render("* ")
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", marker, s.Name, SubtleStyle.Render(fmt.Sprintf("(%s, %s / %s)", s.Method, orDash(s.Machine), orDash(s.Grinder)))))
	}

	b.WriteString("\n" + BoldStyle.Render(fmt.Sprintf("Recipes (%d)", len(doc.Recipes))) + "\n")
	for _, r := range doc.Recipes {
		line := fmt.Sprintf("  %s %s", r.Name, SubtleStyle.Render(r.CreatedAt.Format("2006-01-02")))
		if _, ok := doc.FindSetup(r.SetupID); !ok {
			line += " " + WarningStyle.Render("(setup missing)")
		}
		if r.AIDiagnosis != "" {
			line += " " + RobotIcon
		}
		b.WriteString(line + "\n")
	}

	return RenderBox("Saved settings", strings.TrimRight(b.String(), "\n"))
}

func suggestion(d model.Diagnosis) string {
	switch {
	case d.GrindAdjustment < 0:
		return fmt.Sprintf("Grind finer: try %d clicks", d.SuggestedClicks)
	case d.GrindAdjustment > 0:
		return fmt.Sprintf("Grind coarser: try %d clicks", d.SuggestedClicks)
	default:
		return fmt.Sprintf("Keep the grind at %d clicks", d.SuggestedClicks)
	}
}

func diagnosisStyle(kind model.DiagnosisKind) lipgloss.Style {
	switch kind {
	case model.KindDialedIn:
		return SuccessStyle.Bold(true)
	case model.KindTooFresh, model.KindChannelingConflict, model.KindChanneling:
		return ErrorStyle.Bold(true)
	default:
		return WarningStyle.Bold(true)
	}
}

func tasteLabel(t model.Taste) string {
	switch t {
	case model.TasteSour:
		return "1 (sour)"
	case model.TasteBalanced:
		return "2 (balanced)"
	case model.TasteBitter:
		return "3 (bitter)"
	default:
		return "unknown"
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
