package calibration

import (
	"fmt"
	"strings"

	"github.com/Veraticus/dialin/internal/model"
)

var roastTips = map[model.Roast]string{
	model.RoastLight: "Light roasts are naturally more acidic and harder to extract.",
	model.RoastDark:  "Dark roasts extract fast and turn bitter easily. Lower the brew temperature if your machine allows it.",
}

func roastTip(r model.Roast) string {
	if tip, ok := roastTips[r]; ok {
		return tip
	}
	return "Adjust the grind gradually, one click at a time."
}

func cremaFeedback(r model.ExtractionReading) string {
	if r.Method != model.MethodEspresso {
		return ""
	}
	switch r.Crema {
	case model.CremaPale:
		return "The pale, thin crema you saw is a strong sign of under-extraction."
	case model.CremaDark:
		return "A very dark or mottled crema is a classic symptom of over-extraction or channeling."
	}
	return ""
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func tooFresh(d *model.Diagnosis) {
	d.Kind = model.KindTooFresh
	d.Title = "Coffee too fresh (excess gas)"
	d.Text = "Large bubbles that vanish quickly usually mean the beans were roasted a few days ago and have not finished degassing."
	d.Items = []string{
		"Main action: rest the beans longer. Aim for 7 to 14 days after the roast date.",
		"Visual check: excess CO2 disturbs the flow and muddies the flavor even when the time looks right.",
		"Tip: a longer pre-infusion, if your machine has one, releases some gas before the main extraction.",
	}
}

func dialedIn(d *model.Diagnosis, r model.ExtractionReading) {
	d.Kind = model.KindDialedIn
	d.Title = "Dialed in"
	d.Text = fmt.Sprintf("The taste is balanced and the extraction time (%ds) is inside the target range. Nice work.", r.ExtractionTime)

	refine := "For more body, add 0.5g of dose and grind one step coarser to hold the time."
	if ratio := r.Ratio(); ratio.Defined && ratio.Value > 0.1 {
		refine += fmt.Sprintf(" For more sweetness, try a slightly shorter ratio (1:%.1f).", ratio.Value-0.1)
	}

	if r.Method == model.MethodFilter {
		d.Items = []string{
			fmt.Sprintf("Next step: keep the grinder at %d clicks.", r.Clicks),
			"Visual check: the spent bed should be flat with no grounds stuck high on the filter walls.",
			refine,
		}
		return
	}
	d.Items = []string{
		fmt.Sprintf("Next step: keep the grinder at %d clicks. You found the balance point.", r.Clicks),
		"Visual check: the crema should be hazelnut colored, dense and persistent.",
		refine,
	}
}

func channelingConflict(d *model.Diagnosis, r model.ExtractionReading) {
	d.Kind = model.KindChannelingConflict
	d.Title = "Conflict: short time with a bitter taste"
	d.Text = fmt.Sprintf("These readings are unusual. A short extraction (%ds) almost always tastes sour, not bitter. This points to severe channeling.", r.ExtractionTime)

	if r.Method == model.MethodFilter {
		d.Items = []string{
			"Main action: leave the grind alone for now. The problem is how the water moves through the bed.",
			"Explanation: water found a fast path around the coffee, over-extracting a small part while the rest barely brewed.",
			"Pouring: pour in stages, keep the spout low and circle gently so the bed stays level.",
			"Bloom: wet all the grounds in the bloom and give it 30-45s before the main pour.",
		}
		return
	}
	d.Items = []string{
		"Main action: leave the grind alone for now. The problem is puck preparation.",
		"Explanation: water punched through the puck at one spot, over-extracting that part (bitterness) while the rest stayed under-extracted, so the total time was short.",
		"Distribution (WDT): break every clump with a fine-needle tool until the bed is fluffy and level.",
		"Tamping: tamp perfectly level with consistent pressure. A tilted tamp is the main cause of channeling.",
	}
}

func underExtracted(d *model.Diagnosis, r model.ExtractionReading) {
	w := WindowFor(r.Method)
	d.Kind = model.KindUnderExtracted
	d.Title = "Sour / short time (under-extracted)"
	d.Text = join(
		fmt.Sprintf("The cup is sour or thin. %ds confirms the extraction ran too fast.", r.ExtractionTime),
		cremaFeedback(r),
	)

	secondary := fmt.Sprintf("Secondary tip: if a finer grind chokes the machine, go back to %d clicks and add 0.5g of dose. More coffee also adds resistance.", r.Clicks)
	if r.Method == model.MethodFilter {
		secondary = "Secondary tip: slow the pour and add one more pulse so the water spends longer in the bed."
	}
	d.Items = []string{
		fmt.Sprintf("Main action: grind finer. Grind size is the primary control of extraction time. Try %d clicks.", r.Clicks-1),
		fmt.Sprintf("Goal: add resistance so the extraction lands in the %s range.", windowLabel(w)),
		"Roast tip: " + roastTip(r.Roast),
		secondary,
	}
}

func overExtracted(d *model.Diagnosis, r model.ExtractionReading) {
	w := WindowFor(r.Method)
	d.Kind = model.KindOverExtracted
	d.Title = "Bitter / long time (over-extracted)"
	d.Text = join(
		fmt.Sprintf("The cup is bitter or astringent. %ds confirms the extraction ran too long.", r.ExtractionTime),
		cremaFeedback(r),
	)

	secondary := "Secondary tip: if it stays bitter with the time in range, the roast may be very dark. You can also drop the dose by 0.5g."
	if r.Method == model.MethodFilter {
		secondary = "Secondary tip: pour faster and in fewer stages, and avoid stirring the bed late in the brew."
	}
	d.Items = []string{
		fmt.Sprintf("Main action: grind coarser to lower the resistance. Try %d clicks.", r.Clicks+1),
		fmt.Sprintf("Goal: bring the extraction back into the %s range.", windowLabel(w)),
		"Roast tip: " + roastTip(r.Roast),
		secondary,
	}
}

func channeling(d *model.Diagnosis, r model.ExtractionReading) {
	d.Kind = model.KindChanneling
	d.Title = "Possible channeling"
	d.Text = fmt.Sprintf("Your extraction time (%ds) is inside the target range but the taste is still off. This usually means channeling: the water found easy paths through the coffee and extracted it unevenly.", r.ExtractionTime)

	if r.Method == model.MethodFilter {
		d.Items = []string{
			"Main action: focus on the pour, not the grind.",
			"Pouring: split the water into 3-4 even pulses and keep the slurry level between them.",
			"Bed: give the brewer a gentle swirl after the last pour so the bed settles flat.",
			"Filter: rinse the paper with hot water so it seals against the brewer walls and nothing bypasses.",
		}
		return
	}
	d.Items = []string{
		"Main action: focus on puck preparation. Do not change the grind yet.",
		join("Visual check:", cremaFeedback(r), "The flow may have started fast and then slowed, or you may have seen pale jets from the basket."),
		"Distribution (WDT): break every clump with a fine-needle tool until the bed is fluffy and level.",
		"Tamping: tamp perfectly level, parallel to the basket rim, with consistent pressure.",
	}
}
