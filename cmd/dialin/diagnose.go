package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dialin/internal/calibration"
	"github.com/Veraticus/dialin/internal/cli"
	"github.com/Veraticus/dialin/internal/llm"
	"github.com/Veraticus/dialin/internal/model"
)

type diagnoseFlags struct {
	method      string
	machine     string
	grinder     string
	accessories []string
	images      []string
	params      model.MethodParams
	ai          bool
}

func diagnoseCmd() *cobra.Command {
	var flags diagnoseFlags

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Diagnose one extraction",
		Long: `Evaluate one shot or brew and suggest a grind change.

Missing or non-numeric values fall back to defaults (14 g dose, 1:2 ratio,
8 clicks, medium roast, 28 s espresso or 135 s filter).`,
		Example: `  dialin diagnose --dose 18 --yield 36 --time 22 --taste 1
  dialin diagnose --method filter --dose 15 --yield 250 --time 165 --taste 3
  dialin diagnose --dose 18 --yield 40 --time 31 --taste 2 --ai --image cup.jpg`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiagnose(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.method, "method", string(model.MethodEspresso), "brew method (espresso, filter)")
	cmd.Flags().StringVar(&flags.params.Dose, "dose", "", "dose in grams")
	cmd.Flags().StringVar(&flags.params.CupYield, "yield", "", "yield in grams")
	cmd.Flags().StringVar(&flags.params.Clicks, "clicks", "", "grinder setting in clicks")
	cmd.Flags().StringVar(&flags.params.Roast, "roast", "", "roast level (light, medium, dark)")
	cmd.Flags().StringVar(&flags.params.ExtractionTime, "time", "", "extraction time in seconds")
	cmd.Flags().StringVar(&flags.params.Crema, "crema", "", "crema (ideal, pale, bubbly, dark); espresso only")
	cmd.Flags().StringVar(&flags.params.Taste, "taste", "", "taste: 1 sour, 2 balanced, 3 bitter")
	cmd.Flags().StringVar(&flags.machine, "machine", "", "machine or brewer, for AI analysis")
	cmd.Flags().StringVar(&flags.grinder, "grinder", "", "grinder, for AI analysis")
	cmd.Flags().StringSliceVar(&flags.accessories, "accessory", nil, "accessory in use, repeatable")
	cmd.Flags().BoolVar(&flags.ai, "ai", false, "also ask the AI barista")
	cmd.Flags().StringSliceVar(&flags.images, "image", nil, "photo of the shot or puck, repeatable (with --ai)")

	return cmd
}

// inputState turns the flags into a form state for the selected method.
func (f diagnoseFlags) inputState() (model.InputState, error) {
	method := model.Method(strings.ToLower(strings.TrimSpace(f.method)))
	if !method.Valid() {
		return model.InputState{}, fmt.Errorf("unknown method %q (want espresso or filter)", f.method)
	}

	params := f.params
	if method == model.MethodFilter {
		params.Crema = ""
	}

	in := model.InputState{
		Method:      method,
		Machine:     f.machine,
		Grinder:     f.grinder,
		Accessories: model.NormalizeAccessories(f.accessories),
	}
	if method == model.MethodFilter {
		in.Filter = params
	} else {
		in.Espresso = params
	}
	return in, nil
}

func runDiagnose(cmd *cobra.Command, flags diagnoseFlags) error {
	in, err := flags.inputState()
	if err != nil {
		return err
	}
	if len(flags.images) > 0 && !flags.ai {
		return fmt.Errorf("--image requires --ai")
	}

	reading := in.Reading()
	d := calibration.Diagnose(reading)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.RenderBox("Reading", cli.RenderReading(reading)))
	fmt.Fprintln(out, cli.RenderDiagnosis(d))

	if !flags.ai {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	images, err := readImages(flags.images)
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	defer analyzer.Close()

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "AI analysis")

	analysisIn := llm.InputFromState(in)
	analysisIn.Diagnosis = &d

	fmt.Fprintln(out, cli.FormatInfo("Asking the AI barista..."))
	html, err := analyzer.Analyze(ctx, analysisIn, images)
	if err != nil {
		if interrupts.WasInterrupted() {
			return nil
		}
		return fmt.Errorf("AI analysis failed: %w", err)
	}

	fmt.Fprintln(out, cli.RenderAnalysis(html))
	return nil
}
