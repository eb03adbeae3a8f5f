package remote

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile persists credentials as YAML at Path, keyed by server URL so one
// file can hold sessions for several backends.
type Profile struct {
	Path   string
	Server string
}

type profileFile struct {
	Sessions map[string]Credentials `yaml:"sessions"`
}

func (p Profile) read() (profileFile, error) {
	var f profileFile
	raw, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", p.Path, err)
	}
	return f, nil
}

func (p Profile) write(f profileFile) error {
	raw, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.Path, raw, 0o600)
}

func (p Profile) Load() (Credentials, error) {
	f, err := p.read()
	if err != nil {
		return Credentials{}, err
	}
	return f.Sessions[p.Server], nil
}

func (p Profile) Save(c Credentials) error {
	f, err := p.read()
	if err != nil {
		return err
	}
	if f.Sessions == nil {
		f.Sessions = make(map[string]Credentials)
	}
	f.Sessions[p.Server] = c
	return p.write(f)
}

func (p Profile) Clear() error {
	f, err := p.read()
	if err != nil {
		return err
	}
	if _, ok := f.Sessions[p.Server]; !ok {
		return nil
	}
	delete(f.Sessions, p.Server)
	return p.write(f)
}
