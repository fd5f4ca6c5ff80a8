package config

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".sumprime"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
// Unset options keep the command line defaults; flags given explicitly
// always win over the file.
type Config struct {
	// Limit is the exclusive upper bound of the summation.
	Limit *int64 `yaml:"limit,omitempty"`
	// Workers is the number of goroutines used for local summation, 0 means
	// one per CPU.
	Workers *int `yaml:"workers,omitempty"`
	// Clock selects the clock used for timing, "wall" or "cpu".
	Clock string `yaml:"clock,omitempty"`

	// Listen is the address the coordinator listens on.
	Listen string `yaml:"listen,omitempty"`
	// Chunks is the number of jobs the coordinator splits the range into.
	Chunks *int `yaml:"chunks,omitempty"`
	// Store is the path of the file where the coordinator persists partial
	// results.
	Store string `yaml:"store,omitempty"`
	// Lease is how long a worker may hold a job before it is handed to
	// another worker, in time.ParseDuration syntax.
	Lease string `yaml:"lease,omitempty"`
}

// LoadConfig attempts to populate a Config object from the file at
// configPath, or from the default config.yml if configPath is empty.
// A missing file is not an error, other errors are reported on stderr and
// an empty Config is returned.
func LoadConfig(configPath string) *Config {
	if configPath == "" {
		var err error
		configPath, err = GetConfigFilePath(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to get config file path: %v.\n", err)
			return &Config{}
		}
	}

	f, err := os.Open(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Unable to open config file: %v.\n", err)
		}
		return &Config{}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Closing config file failed: %v.\n", err)
		}
	}()

	c, err := readConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to decode config file: %v.\n", err)
		return &Config{}
	}
	return c
}

func readConfig(r io.Reader) (*Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config, configPath string) error {
	if configPath == "" {
		if err := createConfigPath(); err != nil {
			return err
		}
		var err error
		configPath, err = GetConfigFilePath(configFile)
		if err != nil {
			return err
		}
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

// WriteDefaultConfig creates the config file at configPath, or at the
// default location if configPath is empty, filled with the commented out
// default options. It refuses to overwrite an existing file.
func WriteDefaultConfig(configPath string) (string, error) {
	if configPath == "" {
		if err := createConfigPath(); err != nil {
			return "", fmt.Errorf("could not create config directory: %v", err)
		}
		var err error
		configPath, err = GetConfigFilePath(configFile)
		if err != nil {
			return "", err
		}
	}
	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("unable to create config file: %v", err)
	}
	defer f.Close()
	if err := writeDefaultConfig(f); err != nil {
		return "", fmt.Errorf("unable to write default configuration: %v", err)
	}
	return configPath, nil
}

func writeDefaultConfig(w io.Writer) error {
	_, err := io.WriteString(w,
		`# Configuration file for sumprime.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Exclusive upper bound of the summation.
# limit: 1000000

# Number of goroutines used to sum locally, 0 means one per CPU.
# workers: 1

# Clock used to time the summation: "wall" (monotonic wall clock) or
# "cpu" (process CPU time).
# clock: wall

# Address the coordinator ('sumprime serve') listens on.
# listen: 127.0.0.1:5000

# Number of jobs the coordinator splits the range into.
# chunks: 100

# File where the coordinator persists partial results.
# store: results.yml

# How long a worker may hold a job before it is handed out again.
# lease: 5m
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
