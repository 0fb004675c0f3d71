package sheets

import (
	"sort"
	"time"

	"github.com/Veraticus/dialin/internal/calibration"
	"github.com/Veraticus/dialin/internal/model"
)

// journalHeader names the columns of the Recipes tab, in row order.
var journalHeader = []any{
	"Date", "Recipe", "Setup", "Machine", "Grinder", "Method",
	"Dose (g)", "Yield (g)", "Ratio", "Clicks", "Roast", "Time (s)",
	"Crema", "Taste", "Diagnosis", "Suggested clicks", "AI analyzed",
}

// JournalRow represents a single row in the Recipes tab.
type JournalRow struct {
	CreatedAt       time.Time
	Name            string
	Setup           string
	Machine         string
	Grinder         string
	Method          model.Method
	Ratio           string
	Roast           string
	Crema           string
	Diagnosis       string
	Dose            float64
	Yield           float64
	Clicks          int
	Time            int
	Taste           int
	SuggestedClicks int
	AIAnalyzed      bool
}

// BuildJournalRows turns a document's recipes into journal rows, newest
// first. Recipes whose setup no longer exists are still exported with an
// empty setup.
func BuildJournalRows(doc model.Document) []JournalRow {
	rows := make([]JournalRow, 0, len(doc.Recipes))
	for _, r := range doc.Recipes {
		reading := r.Reading()
		d := calibration.Diagnose(reading)

		row := JournalRow{
			CreatedAt:       r.CreatedAt,
			Name:            r.Name,
			Method:          reading.Method,
			Dose:            reading.Dose,
			Yield:           reading.CupYield,
			Ratio:           d.Ratio.String(),
			Clicks:          reading.Clicks,
			Roast:           string(reading.Roast),
			Time:            reading.ExtractionTime,
			Taste:           int(reading.Taste),
			Diagnosis:       d.Title,
			SuggestedClicks: d.SuggestedClicks,
			AIAnalyzed:      r.AIDiagnosis != "",
		}
		if reading.Method == model.MethodEspresso {
			row.Crema = string(reading.Crema)
		}
		if s, ok := doc.FindSetup(r.SetupID); ok {
			row.Setup = s.Name
			row.Machine = s.Machine
			row.Grinder = s.Grinder
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows
}

func (r JournalRow) values() []any {
	analyzed := ""
	if r.AIAnalyzed {
		analyzed = "yes"
	}
	return []any{
		r.CreatedAt.Format("2006-01-02 15:04"),
		r.Name,
		r.Setup,
		r.Machine,
		r.Grinder,
		string(r.Method),
		r.Dose,
		r.Yield,
		r.Ratio,
		r.Clicks,
		r.Roast,
		r.Time,
		r.Crema,
		r.Taste,
		r.Diagnosis,
		r.SuggestedClicks,
		analyzed,
	}
}
