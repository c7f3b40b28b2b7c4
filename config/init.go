package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Init writes the config file, copying source when given and the defaults
// otherwise.
func Init(source string) (*Config, error) {
	conf := Default()
	if source != "" {
		var err error
		if conf, err = readConfigFile(source); err != nil {
			return nil, err
		}
	}
	if err := Write(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// Write replaces the config file with conf.
func Write(conf *Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	return writeConfigFile(configPath, conf)
}

// readConfigFile reads the yaml file at filename over the defaults.
func readConfigFile(filename string) (*Config, error) {
	conf := Default()

	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(conf); err != nil {
		return nil, errors.Wrap(err, "failure to decode config")
	}
	return conf, nil
}

func writeConfigFile(path string, cfg *Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0775)
	if err != nil {
		return err
	}

	if fileExists(path) {
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	f, err := openFile(path, 0660)
	if err != nil {
		return err
	}
	defer f.Close()

	return encode(f, cfg)
}

// encode configuration with yaml
func encode(w io.Writer, value interface{}) error {
	buf, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// openFile creates path exclusively with the given mode.
func openFile(path string, mode os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(f.Name(), mode); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}

// fileExists check if the file with the given path exits.
func fileExists(filename string) bool {
	fi, err := os.Lstat(filename)
	if fi != nil || (err != nil && !os.IsNotExist(err)) {
		return true
	}
	return false
}
