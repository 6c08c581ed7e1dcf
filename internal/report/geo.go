package report

import (
	"fmt"
	"os"

	"github.com/awalterschulze/gographviz"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"gavrptw/internal/model"
	"gavrptw/internal/opt"
)

// RoutesGeoJSON returns one LineString per route (depot to depot, in the instance's
// planar coordinates) followed by one Point per location.
func RoutesGeoJSON(inst *model.Instance, routes []opt.Route) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, r := range routes {
		ls := orb.LineString{inst.Depot.Point()}
		for _, id := range r.Customers {
			ls = append(ls, inst.Location(id).Point())
		}
		ls = append(ls, inst.Depot.Point())
		f := geojson.NewFeature(ls)
		f.Properties["vehicle"] = i + 1
		f.Properties["customers"] = r.Customers
		f.Properties["load"] = r.Load
		if r.Overloaded {
			f.Properties["overloaded"] = true
		}
		fc.Append(f)
	}
	depot := geojson.NewFeature(inst.Depot.Point())
	depot.Properties["id"] = model.DepotID
	depot.Properties["depot"] = true
	fc.Append(depot)
	for _, c := range inst.Customers {
		f := geojson.NewFeature(c.Point())
		f.Properties["id"] = c.ID
		f.Properties["demand"] = c.Demand
		f.Properties["readyTime"] = c.ReadyTime
		f.Properties["dueTime"] = c.DueTime
		fc.Append(f)
	}
	return fc
}

// ExportGeoJSON writes RoutesGeoJSON to path.
func ExportGeoJSON(path string, inst *model.Instance, routes []opt.Route) error {
	data, err := RoutesGeoJSON(inst, routes).MarshalJSON()
	if err != nil {
		return fmt.Errorf("export geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export geojson: %w", err)
	}
	return nil
}

var palette = []string{"blue", "red", "darkgreen", "orange", "purple", "brown", "magenta", "cyan4"}

// RoutesDOT renders the solution as a directed Graphviz graph: the depot as a box,
// customers as ellipses placed at their coordinates, one edge colour per vehicle.
func RoutesDOT(inst *model.Instance, routes []opt.Route) (string, error) {
	const name = "routes"
	g := gographviz.NewGraph()
	if err := g.SetName(name); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	node := func(id int) string { return fmt.Sprintf("n%d", id) }
	pos := func(c model.Customer) string { return fmt.Sprintf(`"%g,%g!"`, c.X, c.Y) }

	if err := g.AddNode(name, node(model.DepotID), map[string]string{
		"label": `"depot"`, "shape": "box", "pos": pos(inst.Depot),
	}); err != nil {
		return "", err
	}
	for _, c := range inst.Customers {
		if err := g.AddNode(name, node(c.ID), map[string]string{
			"label": fmt.Sprintf(`"%d"`, c.ID), "pos": pos(c),
		}); err != nil {
			return "", err
		}
	}
	for i, r := range routes {
		attrs := map[string]string{
			"color": palette[i%len(palette)],
			"label": fmt.Sprintf(`"v%d"`, i+1),
		}
		prev := model.DepotID
		for _, id := range append(append([]int(nil), r.Customers...), model.DepotID) {
			if err := g.AddEdge(node(prev), node(id), true, attrs); err != nil {
				return "", err
			}
			prev = id
		}
	}
	return g.String(), nil
}

// ExportDOT writes RoutesDOT to path.
func ExportDOT(path string, inst *model.Instance, routes []opt.Route) error {
	s, err := RoutesDOT(inst, routes)
	if err != nil {
		return fmt.Errorf("export dot: %w", err)
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		return fmt.Errorf("export dot: %w", err)
	}
	return nil
}
