// Package people loads the list of persons to audit from YAML or CSV.
package people

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/redactyl/leaktrace/internal/types"
)

// Person is one input row.
type Person struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Profile string `yaml:"profile"`
}

type file struct {
	People []Person `yaml:"people"`
}

// Load reads path, choosing the decoder from its extension.
func Load(path string) ([]types.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening people file: %w", err)
	}
	defer f.Close()
	var ps []Person
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		ps, err = DecodeCSV(f)
	case ".yml", ".yaml":
		ps, err = DecodeYAML(f)
	default:
		return nil, fmt.Errorf("unsupported people file %s: want .yaml, .yml or .csv", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Entities(ps), nil
}

// DecodeYAML accepts either a top-level list or a `people:` mapping.
func DecodeYAML(r io.Reader) ([]Person, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var list []Person
	if err := yaml.Unmarshal(b, &list); err == nil {
		return list, nil
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parsing people YAML: %w", err)
	}
	return f.People, nil
}

// DecodeCSV reads a header row naming at least a name column; profile and id
// columns are optional.
func DecodeCSV(r io.Reader) ([]Person, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	col := map[string]int{"name": -1, "profile": -1, "id": -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name", "person name", "author":
			col["name"] = i
		case "profile", "profile url", "author_url", "url":
			col["profile"] = i
		case "id":
			col["id"] = i
		}
	}
	if col["name"] < 0 {
		return nil, errors.New("CSV header has no name column")
	}
	at := func(rec []string, k string) string {
		if i := col[k]; i >= 0 && i < len(rec) {
			return rec[i]
		}
		return ""
	}
	var out []Person
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		out = append(out, Person{ID: at(rec, "id"), Name: at(rec, "name"), Profile: at(rec, "profile")})
	}
}

// Entities converts rows to entities. Blank and anonymous names are dropped
// and rows sharing a profile reference collapse into the first one.
func Entities(ps []Person) []types.Entity {
	seen := map[string]bool{}
	var out []types.Entity
	for _, p := range ps {
		name := strings.TrimSpace(p.Name)
		if name == "" || strings.Contains(name, "Anonymous") {
			continue
		}
		profile := strings.TrimSpace(p.Profile)
		key := strings.ToLower(profile)
		if key == "" {
			key = "name:" + strings.ToLower(name)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = key
		}
		out = append(out, types.NewEntity(id, name, profile))
	}
	return out
}
