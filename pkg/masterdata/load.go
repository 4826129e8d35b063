package masterdata

import (
	"fmt"
	"io/fs"

	"github.com/goccy/go-yaml"

	"github.com/admitkit/medmatch/pkg/errors"
	"github.com/admitkit/medmatch/pkg/logging"
)

// load reads the master data YAML files from the configured filesystem.
// States must load before colleges so state ids resolve; courses before
// colleges so course-offer indexes resolve. A missing file is tolerated
// (partial registries are normal in tests); a malformed file or any
// other read failure is fatal.
func (r *Registry) load(fsys fs.FS) error {
	if err := loadFile(r, fsys, "states.yaml", func(s *State) Entity { return s }); err != nil {
		return err
	}
	if err := loadFile(r, fsys, "courses.yaml", func(c *Course) Entity { return c }); err != nil {
		return err
	}
	if err := loadFile(r, fsys, "colleges.yaml", func(c *College) Entity { return c }); err != nil {
		return err
	}
	if err := loadFile(r, fsys, "categories.yaml", func(c *Category) Entity { return c }); err != nil {
		return err
	}
	if err := loadFile(r, fsys, "quotas.yaml", func(q *Quota) Entity { return q }); err != nil {
		return err
	}

	stats := r.Stats()
	logging.Info().
		Int("states", stats[EntityTypeState]).
		Int("colleges", stats[EntityTypeCollege]).
		Int("courses", stats[EntityTypeCourse]).
		Int("categories", stats[EntityTypeCategory]).
		Int("quotas", stats[EntityTypeQuota]).
		Msg("Master registry loaded")
	return nil
}

// loadFile unmarshals one YAML file of entities and indexes each entry.
func loadFile[T any](r *Registry, fsys fs.FS, name string, asEntity func(*T) Entity) error {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil // Partial registries are normal in tests
	}
	if err != nil {
		return errors.WrapResource("load", name, "", fmt.Errorf("%w: %v", errors.ErrRegistryLoad, err))
	}

	var items []T
	if err := yaml.Unmarshal(data, &items); err != nil {
		return errors.WrapParse("yaml", name, err)
	}

	for i := range items {
		if _, err := r.Add(asEntity(&items[i])); err != nil {
			return errors.WrapResource("load", name, "", err)
		}
	}
	return nil
}
