package catalog

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/aid-simulator/internal/estimate"
	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

// File is the on-disk catalog document.
type File struct {
	Programs []model.ProgramRecord `yaml:"programs"`
}

// LoadFile reads and prepares a YAML catalog.
func LoadFile(path string) ([]model.ProgramRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Load(f)
}

// Load decodes a YAML catalog and prepares its records for storage.
func Load(r io.Reader) ([]model.ProgramRecord, error) {
	var doc File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "catalog: decode yaml")
	}
	return Prepare(doc.Programs)
}

// Prepare normalises scopes to slugs, assigns families to untagged records
// and fixes catalog positions from document order. Records without an id or
// name, and repeated (id, scope) pairs, are rejected.
func Prepare(programs []model.ProgramRecord) ([]model.ProgramRecord, error) {
	out := make([]model.ProgramRecord, 0, len(programs))
	seen := make(map[[2]string]struct{}, len(programs))
	for i, p := range programs {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" || p.Name == "" {
			return nil, eris.Errorf("catalog: program #%d needs an id and a name", i+1)
		}

		p.Scope = textnorm.Slug(p.Scope)
		if p.Scope == "" {
			p.Scope = model.ScopeNational
		}
		key := [2]string{p.ID, p.Scope}
		if _, dup := seen[key]; dup {
			return nil, eris.Errorf("catalog: duplicate program %s in scope %s", p.ID, p.Scope)
		}
		seen[key] = struct{}{}

		if p.Family == "" {
			p.Family = estimate.ClassifyFamily(p)
		}
		p.Position = i + 1
		out = append(out, p)
	}
	return out, nil
}
