package model

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// jsonLocation mirrors one depot/customer entry of the instance JSON files.
type jsonLocation struct {
	Coordinates struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"coordinates"`
	Demand      float64 `json:"demand"`
	ReadyTime   float64 `json:"ready_time"`
	DueTime     float64 `json:"due_time"`
	ServiceTime float64 `json:"service_time"`
}

func (l jsonLocation) customer(id int) Customer {
	return Customer{
		ID:          id,
		X:           l.Coordinates.X,
		Y:           l.Coordinates.Y,
		Demand:      l.Demand,
		ReadyTime:   l.ReadyTime,
		DueTime:     l.DueTime,
		ServiceTime: l.ServiceTime,
	}
}

// LoadJSON reads an instance in the flat JSON layout:
// instance_name, max_vehicle_number, vehicle_capacity, depart, customer_<n>, distance_matrix.
// The legacy "deport" key is accepted for the depot.
func LoadJSON(r io.Reader) (*Instance, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("load json: decode: %w", err)
	}
	inst := &Instance{}
	if v, ok := raw["instance_name"]; ok {
		if err := json.Unmarshal(v, &inst.Name); err != nil {
			return nil, fmt.Errorf("load json: instance_name: %w", err)
		}
	}
	if v, ok := raw["max_vehicle_number"]; ok {
		if err := json.Unmarshal(v, &inst.MaxVehicles); err != nil {
			return nil, fmt.Errorf("load json: max_vehicle_number: %w", err)
		}
	}
	if v, ok := raw["vehicle_capacity"]; ok {
		if err := json.Unmarshal(v, &inst.Capacity); err != nil {
			return nil, fmt.Errorf("load json: vehicle_capacity: %w", err)
		}
	}
	depot, ok := raw["depart"]
	if !ok {
		depot, ok = raw["deport"]
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing depot entry", ErrInvalidInstance)
	}
	var dl jsonLocation
	if err := json.Unmarshal(depot, &dl); err != nil {
		return nil, fmt.Errorf("load json: depot: %w", err)
	}
	inst.Depot = dl.customer(DepotID)

	ids := []int{}
	for k := range raw {
		if !strings.HasPrefix(k, "customer_") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(k, "customer_"))
		if err != nil {
			return nil, fmt.Errorf("%w: bad customer key %q", ErrInvalidInstance, k)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		var cl jsonLocation
		if err := json.Unmarshal(raw[fmt.Sprintf("customer_%d", id)], &cl); err != nil {
			return nil, fmt.Errorf("load json: customer_%d: %w", id, err)
		}
		inst.Customers = append(inst.Customers, cl.customer(id))
	}
	if v, ok := raw["distance_matrix"]; ok {
		if err := json.Unmarshal(v, &inst.Matrix); err != nil {
			return nil, fmt.Errorf("load json: distance_matrix: %w", err)
		}
	}
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// LoadSolomon reads the Solomon benchmark text format and computes Euclidean distances.
func LoadSolomon(r io.Reader) (*Instance, error) {
	sc := bufio.NewScanner(r)
	inst := &Instance{}
	section := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if inst.Name == "" {
			inst.Name = line
			continue
		}
		switch strings.ToUpper(strings.Fields(line)[0]) {
		case "VEHICLE":
			section = "vehicle"
			continue
		case "CUSTOMER":
			section = "customer"
			continue
		case "NUMBER", "CUST":
			continue
		}
		nums, err := parseFloats(line)
		if err != nil {
			return nil, fmt.Errorf("load solomon: %q: %w", line, err)
		}
		switch section {
		case "vehicle":
			if len(nums) != 2 {
				return nil, fmt.Errorf("%w: vehicle line %q", ErrInvalidInstance, line)
			}
			inst.MaxVehicles = int(nums[0])
			inst.Capacity = nums[1]
		case "customer":
			if len(nums) != 7 {
				return nil, fmt.Errorf("%w: customer line %q", ErrInvalidInstance, line)
			}
			c := Customer{ID: int(nums[0]), X: nums[1], Y: nums[2], Demand: nums[3], ReadyTime: nums[4], DueTime: nums[5], ServiceTime: nums[6]}
			if c.ID == DepotID {
				inst.Depot = c
			} else {
				inst.Customers = append(inst.Customers, c)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("load solomon: scan: %w", err)
	}
	inst.BuildMatrix()
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

func parseFloats(line string) ([]float64, error) {
	fields := strings.Fields(line)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LoadFile picks the loader from the file extension (.json or .txt).
func LoadFile(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load instance %q: %w", path, err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return LoadSolomon(f)
	default:
		return LoadJSON(f)
	}
}

// Resolve finds <name>.json (then <name>.txt) in dataDir and loads it.
func Resolve(dataDir, name string) (*Instance, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("%w: bad instance name %q", ErrInvalidInstance, name)
	}
	for _, ext := range []string{".json", ".txt"} {
		p := filepath.Join(dataDir, name+ext)
		if _, err := os.Stat(p); err == nil {
			inst, err := LoadFile(p)
			if err != nil {
				return nil, err
			}
			if inst.Name == "" {
				inst.Name = name
			}
			return inst, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("resolve instance %q: %w", name, err)
		}
	}
	return nil, fmt.Errorf("resolve instance %q in %q: %w", name, dataDir, os.ErrNotExist)
}

// List returns the instance names available in dataDir.
func List(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	seen := map[string]struct{}{}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".txt" {
			continue
		}
		n := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
