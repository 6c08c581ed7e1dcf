// Package report renders solver results: route printouts, statistics exports
// (CSV and XLSX), route maps (GeoJSON and DOT) and a logging observer.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gavrptw/internal/opt"
)

// FormatRoutes renders one line per vehicle, e.g. "  Vehicle 1's route: 0 - 3 - 1 - 0".
// With merge set it renders a single line where routes share the depot:
// "0 - 3 - 1 - 0 - 2 - 0".
func FormatRoutes(routes []opt.Route, merge bool) string {
	var b strings.Builder
	merged := []string{"0"}
	for i, r := range routes {
		for _, id := range r.Customers {
			merged = append(merged, strconv.Itoa(id))
		}
		merged = append(merged, "0")
		if !merge {
			fmt.Fprintf(&b, "  Vehicle %d's route: %s\n", i+1, routeString(r))
		}
	}
	if merge {
		b.WriteString(strings.Join(merged, " - "))
		b.WriteByte('\n')
	}
	return b.String()
}

// PrintRoutes writes FormatRoutes to w.
func PrintRoutes(w io.Writer, routes []opt.Route, merge bool) error {
	_, err := io.WriteString(w, FormatRoutes(routes, merge))
	return err
}

// Summary writes the best individual, its fitness and total cost.
func Summary(w io.Writer, res opt.Result) error {
	genes := []int{}
	if res.Best != nil {
		genes = res.Best.Genes
	}
	_, err := fmt.Fprintf(w, "Best individual: %v\nFitness: %v\nTotal cost: %v\n", genes, res.Fitness, res.Cost)
	return err
}

func routeString(r opt.Route) string {
	stops := make([]string, 0, len(r.Customers)+2)
	stops = append(stops, "0")
	for _, id := range r.Customers {
		stops = append(stops, strconv.Itoa(id))
	}
	stops = append(stops, "0")
	return strings.Join(stops, " - ")
}
