package runs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gavrptw/internal/model"
)

// ErrUnknownInstance is returned when no data directory holds the named instance.
var ErrUnknownInstance = errors.New("unknown instance")

// Catalog resolves instance names against an ordered list of directories.
type Catalog struct {
	Dirs []string
}

// NewCatalog searches the customised JSON, plain JSON and Solomon text folders
// under dataDir, then dataDir itself.
func NewCatalog(dataDir string) Catalog {
	return Catalog{Dirs: []string{
		filepath.Join(dataDir, "json_customize"),
		filepath.Join(dataDir, "json"),
		filepath.Join(dataDir, "text"),
		dataDir,
	}}
}

// Resolve loads the first match for name.
func (c Catalog) Resolve(name string) (*model.Instance, error) {
	for _, dir := range c.Dirs {
		inst, err := model.Resolve(dir, name)
		if err == nil {
			return inst, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownInstance, name)
}

// List returns every distinct instance name, sorted. Missing directories are skipped.
func (c Catalog) List() ([]string, error) {
	seen := map[string]struct{}{}
	out := []string{}
	for _, dir := range c.Dirs {
		names, err := model.List(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, n := range names {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
