package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gavrptw/internal/opt"
)

// Columns is the header of the statistics export.
var Columns = []string{
	"generation",
	"evaluated_individuals",
	"min_fitness",
	"max_fitness",
	"avg_fitness",
	"std_fitness",
	"avg_cost",
}

// FormatFloat renders v the way the historical result files do: shortest
// round-trip digits, always with a decimal point, exponent form outside [1e-4, 1e16).
func FormatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsInf(v, -1) {
		return "-inf"
	}
	if math.IsNaN(v) {
		return "nan"
	}
	abs := math.Abs(v)
	if v != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// CSVName builds the export file name from the run parameters.
func CSVName(p opt.Params) string {
	return fmt.Sprintf("%s_uC%s_iC%s_wC%s_dC%s_iS%d_pS%d_cP%s_mP%s_nG%d.csv",
		p.InstanceName,
		FormatFloat(p.Cost.Unit), FormatFloat(p.Cost.Init), FormatFloat(p.Cost.Wait), FormatFloat(p.Cost.Delay),
		p.IndSize, p.PopSize, FormatFloat(p.CxPb), FormatFloat(p.MutPb), p.Generations)
}

// Row renders one statistics row in column order.
func Row(s opt.GenerationStats) []string {
	return []string{
		strconv.Itoa(s.Generation),
		strconv.Itoa(s.Evaluated),
		FormatFloat(s.Min),
		FormatFloat(s.Max),
		FormatFloat(s.Mean),
		FormatFloat(s.Std),
		FormatFloat(s.AvgCost),
	}
}

// WriteCSV writes the header and one row per generation.
func WriteCSV(w io.Writer, history []opt.GenerationStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, s := range history {
		if err := cw.Write(Row(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes history to dir/CSVName(p), creating dir, and returns the path.
func ExportCSV(dir string, p opt.Params, history []opt.GenerationStats) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export csv: %w", err)
	}
	path := filepath.Join(dir, CSVName(p))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export csv: %w", err)
	}
	if err := WriteCSV(f, history); err != nil {
		f.Close()
		return "", fmt.Errorf("export csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("export csv: %w", err)
	}
	return path, nil
}
