package decl

import (
	"io"
	"io/fs"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load decodes a normalized compilation unit from YAML.
func Load(r io.Reader) (*Unit, error) {
	var unit Unit
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&unit); err != nil {
		return nil, errors.Wrap(err, "decoding normalized unit")
	}
	return &unit, nil
}

// LoadFile decodes a normalized compilation unit from a file.
func LoadFile(fsys fs.FS, path string) (*Unit, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening unit %s", path)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}
