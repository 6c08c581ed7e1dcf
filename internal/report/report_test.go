package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"gavrptw/internal/model"
	"gavrptw/internal/opt"
)

func sampleInstance() *model.Instance {
	return &model.Instance{
		Name:     "C-n3",
		Capacity: 20,
		Depot:    model.Customer{ID: 0, DueTime: 230},
		Customers: []model.Customer{
			{ID: 1, X: 3, Y: 4, Demand: 10, DueTime: 100},
			{ID: 2, X: 6, Y: 8, Demand: 10, DueTime: 120},
			{ID: 3, X: 0, Y: 5, Demand: 5, DueTime: 80},
		},
	}
}

func sampleResult() opt.Result {
	return opt.Result{
		Instance: "C-n3",
		Routes:   []opt.Route{{Customers: []int{3, 1}, Load: 15}, {Customers: []int{2}, Load: 10}},
		Cost:     42,
		Fitness:  1.0 / 42,
		History: []opt.GenerationStats{
			{Generation: 0, Evaluated: 15, Min: 0.01, Max: 0.02, Mean: 0.015, Std: 0.005, AvgCost: 1 / 0.015},
			{Generation: 1, Evaluated: 12, Min: 0.012, Max: 0.025, Mean: 0.02, Std: 0.004, AvgCost: 50},
		},
		Duration: time.Millisecond,
	}
}

func TestFormatRoutes(t *testing.T) {
	routes := sampleResult().Routes
	want := "  Vehicle 1's route: 0 - 3 - 1 - 0\n  Vehicle 2's route: 0 - 2 - 0\n"
	if got := FormatRoutes(routes, false); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := FormatRoutes(routes, true); got != "0 - 3 - 1 - 0 - 2 - 0\n" {
		t.Fatalf("merged: %q", got)
	}
	var buf bytes.Buffer
	if err := PrintRoutes(&buf, routes, true); err != nil || buf.String() != "0 - 3 - 1 - 0 - 2 - 0\n" {
		t.Fatalf("print: %q %v", buf.String(), err)
	}
}

func TestFormatFloat(t *testing.T) {
	cases := map[float64]string{0: "0.0", 8: "8.0", 0.85: "0.85", 1.5e-05: "1.5e-05", 123.25: "123.25", 1e16: "1e+16"}
	for v, want := range cases {
		if got := FormatFloat(v); got != want {
			t.Fatalf("%v: got %q want %q", v, got, want)
		}
	}
}

func TestCSVName(t *testing.T) {
	p := opt.Params{
		InstanceName: "C204",
		Cost:         opt.CostParams{Unit: 8, Init: 100, Wait: 1, Delay: 1.5},
		IndSize:      100, PopSize: 400, CxPb: 0.85, MutPb: 0.02, Generations: 300,
	}
	want := "C204_uC8.0_iC100.0_wC1.0_dC1.5_iS100_pS400_cP0.85_mP0.02_nG300.csv"
	if got := CSVName(p); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestExportCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	p := opt.Params{InstanceName: "C-n3", Cost: opt.CostParams{Unit: 1}, IndSize: 3, PopSize: 15, CxPb: 0.8, MutPb: 0.1, Generations: 2}
	path, err := ExportCSV(dir, p, sampleResult().History)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 || strings.Join(rows[0], ",") != strings.Join(Columns, ",") {
		t.Fatalf("rows: %v", rows)
	}
	if rows[2][0] != "1" || rows[2][1] != "12" || rows[2][6] != "50.0" {
		t.Fatalf("row 2: %v", rows[2])
	}
}

func TestBuildXLSX(t *testing.T) {
	f, err := BuildXLSX(sampleResult())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer f.Close()
	v, err := f.GetCellValue(statsSheet, "A1")
	if err != nil || v != "generation" {
		t.Fatalf("A1: %q %v", v, err)
	}
	rows, err := f.GetRows(statsSheet)
	if err != nil || len(rows) != 3 {
		t.Fatalf("stats rows: %d %v", len(rows), err)
	}
	route, _ := f.GetCellValue(routesSheet, "B2")
	if route != "0 - 3 - 1 - 0" {
		t.Fatalf("route cell: %q", route)
	}
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := ExportXLSX(path, sampleResult()); err != nil {
		t.Fatalf("export: %v", err)
	}
	g, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	g.Close()
}

func TestRoutesGeoJSON(t *testing.T) {
	inst := sampleInstance()
	fc := RoutesGeoJSON(inst, sampleResult().Routes)
	if len(fc.Features) != 2+1+3 {
		t.Fatalf("features: %d", len(fc.Features))
	}
	if fc.Features[0].Properties["vehicle"] != 1 {
		t.Fatalf("properties: %v", fc.Features[0].Properties)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc struct {
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Features[0].Geometry.Type != "LineString" || string(doc.Features[0].Geometry.Coordinates) != "[[0,0],[0,5],[3,4],[0,0]]" {
		t.Fatalf("route 1: %s %s", doc.Features[0].Geometry.Type, doc.Features[0].Geometry.Coordinates)
	}
}

func TestRoutesDOT(t *testing.T) {
	s, err := RoutesDOT(sampleInstance(), sampleResult().Routes)
	if err != nil {
		t.Fatalf("dot: %v", err)
	}
	for _, want := range []string{"digraph routes", "n0->n3", "n3->n1", "n1->n0", "n0->n2", "n2->n0"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in:\n%s", want, s)
		}
	}
}

func TestLogObserver(t *testing.T) {
	o := LogObserver{Run: "r1", Every: 10}
	if err := o.OnGeneration(context.Background(), opt.GenerationStats{Generation: 10}); err != nil {
		t.Fatal(err)
	}
	if err := o.OnComplete(context.Background(), sampleResult()); err != nil {
		t.Fatal(err)
	}
}
