package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Result is the evaluation of one model in a run.
type Result struct {
	Model string
	Metrics
}

// Run collects the results of one experiment run.
type Run struct {
	ID         uuid.UUID
	Experiment string
	Seed       uint64
	Started    time.Time
	Results    []Result
	Tables     []*Table
}

// NewRun starts a run with a fresh time-ordered identifier.
func NewRun(experiment string, seed uint64) *Run {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Run{
		ID:         id,
		Experiment: experiment,
		Seed:       seed,
		Started:    time.Now(),
	}
}

// Record adds the metrics of a model.
func (r *Run) Record(model string, m Metrics) {
	r.Results = append(r.Results, Result{Model: model, Metrics: m})
}

// Attach adds a table to export.
func (r *Run) Attach(t *Table) {
	r.Tables = append(r.Tables, t)
}

// Mark is a position in the results and tables of a run.
type Mark struct{ results, tables int }

// Mark returns the current position, to roll back to.
func (r *Run) Mark() Mark {
	return Mark{len(r.Results), len(r.Tables)}
}

// Rollback drops the results and tables added after m.
func (r *Run) Rollback(m Mark) {
	r.Results = r.Results[:m.results]
	r.Tables = r.Tables[:m.tables]
}

// Summary is the table of recorded metrics, one row per result in
// the order of recording.
func (r *Run) Summary() *Table {
	t := NewTable("summary", "n", "rmse", "mean_err", "max_abs", "nlpd", "msll", "outliers")
	for _, res := range r.Results {
		t.Append(float64(res.N), res.RMSE, res.MeanErr, res.MaxAbs,
			res.NLPD, res.MSLL, float64(res.Outliers))
	}
	return t
}

// Log prints the recorded metrics.
func (r *Run) Log() {
	for _, res := range r.Results {
		entry := log.WithFields(log.Fields{
			"run":   r.ID.String(),
			"model": res.Model,
			"n":     res.N,
			"rmse":  fmt.Sprintf("%.4g", res.RMSE),
			"nlpd":  fmt.Sprintf("%.4g", res.NLPD),
			"msll":  fmt.Sprintf("%.4g", res.MSLL),
		})
		if res.Outliers > 0 {
			entry.WithField("outliers", res.Outliers).
				Warnf("%s: %d residuals beyond %dσ", r.Experiment, res.Outliers, Outlier)
		} else {
			entry.Infof("%s", r.Experiment)
		}
	}
}

// SaveCSV writes the summary and every attached table into dir.
func (r *Run) SaveCSV(dir string) ([]string, error) {
	var paths []string
	for _, t := range append([]*Table{r.Summary()}, r.Tables...) {
		path, err := t.SaveCSV(dir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// SaveWorkbook writes a workbook with the run description and the
// summary on the first sheet and a sheet per attached table.
func (r *Run) SaveWorkbook(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	idx, err := f.NewSheet(summary)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, kv := range [][2]any{
		{"run", r.ID.String()},
		{"experiment", r.Experiment},
		{"seed", r.Seed},
		{"started", r.Started.Format(time.RFC3339)},
	} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &[]any{kv[0], kv[1]}); err != nil {
			return err
		}
		if err := f.SetCellStyle(summary, cell, cell, bold); err != nil {
			return err
		}
	}

	// Metrics start below the description, with the model names in
	// the first column.
	const top = 6
	t := r.Summary()
	header := append([]any{"model"}, stringCells(t.Columns)...)
	cell, _ := excelize.CoordinatesToCellName(1, top)
	if err := f.SetSheetRow(summary, cell, &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), top)
	if err := f.SetCellStyle(summary, cell, last, bold); err != nil {
		return err
	}
	for i, row := range t.Rows {
		values := append([]any{r.Results[i].Model}, floatCells(row)...)
		cell, _ := excelize.CoordinatesToCellName(1, top+1+i)
		if err := f.SetSheetRow(summary, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(summary, "A", "A", 16); err != nil {
		return err
	}

	for _, t := range r.Tables {
		if err := addSheet(f, t, bold); err != nil {
			return fmt.Errorf("sheet %s: %w", t.Name, err)
		}
	}
	return f.SaveAs(path)
}

func addSheet(f *excelize.File, t *Table, style int) error {
	if _, err := f.NewSheet(t.Name); err != nil {
		return err
	}
	header := stringCells(t.Columns)
	if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(t.Name, "A1", last, style); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := floatCells(row)
		if err := f.SetSheetRow(t.Name, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func stringCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func floatCells(xs []float64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
