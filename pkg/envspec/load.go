package envspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ReadEnvironment loads an environment file, detecting the format from the
// extension. Unknown keys are rejected so typos in environment files fail at
// load time instead of synthesizing half an environment.
func ReadEnvironment(fpath string) (Environment, error) {
	var env Environment

	f, err := os.Open(fpath)
	if err != nil {
		return env, err
	}
	defer f.Close() // nolint:errcheck

	switch filepath.Ext(fpath) {
	case ".json":
		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		err = dec.Decode(&env)
		env.Format = "json"

	case ".yaml", ".yml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		err = dec.Decode(&env)
		env.Format = "yaml"

	case ".toml":
		dec := toml.NewDecoder(f)
		dec.DisallowUnknownFields()
		err = dec.Decode(&env)
		env.Format = "toml"

	default:
		return env, fmt.Errorf("unsupported environment file extension %q", filepath.Ext(fpath))
	}
	if err != nil {
		return env, fmt.Errorf("could not decode %s: %w", fpath, err)
	}

	env.Path = fpath
	env.ApplyDefaults()
	return env, nil
}

// WriteEnvironment writes the environment back out in its original format.
func WriteEnvironment(env Environment, fpath string) error {
	var (
		buf []byte
		err error
	)
	switch env.Format {
	case "json":
		buf, err = json.MarshalIndent(env, "", "  ")
	case "toml":
		buf, err = toml.Marshal(env)
	case "yaml", "":
		buf, err = yaml.Marshal(env)
	default:
		return fmt.Errorf("unsupported environment format %q", env.Format)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(fpath, buf, 0644)
}
