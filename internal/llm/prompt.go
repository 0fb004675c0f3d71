package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/dialin/internal/model"
)

// AnalysisInput is everything the prompt needs about one extraction.
type AnalysisInput struct {
	// Diagnosis is the rule-based result, passed along as a hint when set.
	Diagnosis   *model.Diagnosis
	Machine     string
	Grinder     string
	Method      model.Method
	Accessories []string
	Params      model.MethodParams
}

// InputFromState builds an AnalysisInput from the active method of a form state.
func InputFromState(s model.InputState) AnalysisInput {
	method := s.Method
	if !method.Valid() {
		method = model.MethodEspresso
	}
	return AnalysisInput{
		Machine:     s.Machine,
		Grinder:     s.Grinder,
		Accessories: s.Accessories,
		Method:      method,
		Params:      s.Active(),
	}
}

// InputFromRecipe builds an AnalysisInput from a saved recipe and its setup.
func InputFromRecipe(r model.Recipe, s model.Setup) AnalysisInput {
	return AnalysisInput{
		Machine:     s.Machine,
		Grinder:     s.Grinder,
		Accessories: s.Accessories,
		Method:      r.Method,
		Params:      r.Params,
	}
}

// BuildPrompt renders the analysis prompt. The model is asked for HTML only.
func BuildPrompt(in AnalysisInput) string {
	p := in.Params
	method := in.Method
	if !method.Valid() {
		method = model.MethodEspresso
	}

	accessories := "none provided"
	if len(in.Accessories) > 0 {
		accessories = strings.Join(in.Accessories, ", ")
	}

	crema := "N/A (filter)"
	if method == model.MethodEspresso {
		crema = orNotProvided(p.Crema)
	}

	var b strings.Builder
	b.WriteString("You are an expert barista who knows both home and professional equipment.\n")
	b.WriteString("Analyze the following data and images of a coffee extraction and give a direct, technical and advanced diagnosis.\n\n")

	b.WriteString("The answer MUST be HTML. Use <h3><strong>Title</strong></h3> for the headings \"Diagnosis\", \"Main Suggestion\" and \"Detailed Analysis\".\n")
	b.WriteString("Leave a blank line after each block and write the headings in uppercase.\n")
	b.WriteString("Use <p> for paragraphs. For the \"Detailed Analysis\", use a <ul> list with <li> items.\n")
	b.WriteString("Use <b> to highlight important terms. Do not use markdown (###).\n")
	b.WriteString("If there are images, relate your analysis to what you see in them (crema color, uniformity, etc.). If there are none, rely on the data only.\n\n")

	b.WriteString("USER SETUP:\n")
	fmt.Fprintf(&b, "- Machine / base method: %s\n", orNotProvided(in.Machine))
	fmt.Fprintf(&b, "- Grinder: %s\n", orNotProvided(in.Grinder))
	fmt.Fprintf(&b, "- Extra accessories: %s\n\n", accessories)

	b.WriteString("EXTRACTION DATA:\n")
	fmt.Fprintf(&b, "- Selected method: %s\n", strings.ToUpper(string(method)))
	fmt.Fprintf(&b, "- Dose (ground coffee): %sg\n", p.Dose)
	fmt.Fprintf(&b, "- Final yield: %sg (resulting ratio: %s)\n", p.CupYield, promptRatio(p))
	fmt.Fprintf(&b, "- Grind: %s clicks\n", p.Clicks)
	fmt.Fprintf(&b, "- Roast level: %s\n", p.Roast)
	fmt.Fprintf(&b, "- Recorded time: %ss\n", p.ExtractionTime)
	fmt.Fprintf(&b, "- Reported crema: %s\n", crema)
	fmt.Fprintf(&b, "- Taste: %s (1=sour/under, 2=balanced, 3=bitter/over)\n", p.Taste)
	if d := in.Diagnosis; d != nil {
		fmt.Fprintf(&b, "- Rule-based pre-diagnosis: %s\n", d.Title)
	}
	b.WriteString("\n")

	if method == model.MethodEspresso {
		b.WriteString("For ESPRESSO, focus on grinder retention, channeling (WDT), and the 25-35s target time. Consider the limits of the reported grinder or machine.\n\n")
	} else {
		b.WriteString("For FILTER, focus on bypass, flow restriction of the filter, and total brew times around 2 to 2.5 minutes.\n\n")
	}

	b.WriteString("Diagnosis:\n[Clear diagnosis]\n\n")
	b.WriteString("Main Suggestion:\n[Direct action, e.g. \"Go one click finer\", \"Improve your WDT\"]\n\n")
	b.WriteString("Detailed Analysis:\n[Explain why, linking the symptoms to the parts of the setup.]\n")
	return b.String()
}

// promptRatio mirrors what the user typed: unparseable numbers count as zero
// and give an undefined ratio.
func promptRatio(p model.MethodParams) string {
	ratio := model.ComputeRatio(leadingFloat(p.Dose), leadingFloat(p.CupYield))
	return ratio.String()
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)`)

func leadingFloat(s string) float64 {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not provided"
	}
	return s
}

var (
	htmlFenceOpen  = regexp.MustCompile("(?i)^```html\\s*")
	htmlFenceClose = regexp.MustCompile("\\s*```$")
)

// CleanHTML strips a surrounding ```html fence from a model answer.
func CleanHTML(text string) string {
	text = strings.TrimSpace(text)
	text = htmlFenceOpen.ReplaceAllString(text, "")
	text = htmlFenceClose.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
