package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".threadctl"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Log enables debug logging for the layers listed in LogOutput.
	Log bool `yaml:"log"`
	// LogOutput is a comma separated list of layers: thread, regs, watch,
	// native, script.
	LogOutput string `yaml:"log-output,omitempty"`
	// LogDest is a file logging is redirected to.
	LogDest string `yaml:"log-dest,omitempty"`

	// HostPtrSize is the pointer size of the debugger host used to select
	// register layouts when none is given on the command line.
	HostPtrSize int `yaml:"host-ptr-size,omitempty"`

	// Replay holds defaults for the replay command.
	Replay ReplayConfig `yaml:"replay"`

	// Prompt is the prompt printed by the interactive shell.
	Prompt string `yaml:"prompt,omitempty"`
}

// ReplayConfig holds defaults for script replay.
type ReplayConfig struct {
	// Verbose prints every command before executing it.
	Verbose bool `yaml:"verbose"`
	// StopOnError aborts a run of several scripts at the first failing one.
	StopOnError bool `yaml:"stop-on-error"`
	// Metrics prints the classified stop counters after every script.
	Metrics bool `yaml:"metrics"`
}

const defaultPrompt = "(threadctl) "

// GetPrompt returns the shell prompt, falling back to the default one.
func (c *Config) GetPrompt() string {
	if c == nil || c.Prompt == "" {
		return defaultPrompt
	}
	return c.Prompt
}

// GetHostPtrSize returns the configured host pointer size or the size of
// pointers on the machine running threadctl.
func (c *Config) GetHostPtrSize(native int) int {
	if c == nil || (c.HostPtrSize != 4 && c.HostPtrSize != 8) {
		return native
	}
	return c.HostPtrSize
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	dir, err := GetConfigFilePath("")
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}
	return LoadConfigFrom(dir)
}

// LoadConfigFrom loads config.yml from dir, writing the default
// configuration there first if the file does not exist.
func LoadConfigFrom(dir string) *Config {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile := path.Join(dir, configFile)

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		fmt.Printf("Unable to read config data: %v.", err)
		return &Config{}
	}

	c, err := Parse(data)
	if err != nil {
		fmt.Printf("Unable to decode config file: %v.", err)
		return &Config{}
	}
	return c
}

// Parse decodes a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	dir, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return SaveConfigTo(dir, conf)
}

// SaveConfigTo writes conf to config.yml in dir.
func SaveConfigTo(dir string, conf *Config) error {
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(path.Join(dir, configFile))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for threadctl.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Enable debug logging for the listed layers (thread, regs, watch, native, script).
# log: true
# log-output: thread,watch

# Redirect log output to a file.
# log-dest: /tmp/threadctl.log

# Pointer size of the host, used to pick register layouts for 32-bit
# inferiors. Defaults to the pointer size of the machine running threadctl.
# host-ptr-size: 8

replay:
  # Print every script command before running it.
  verbose: false
  # Stop at the first failing script.
  stop-on-error: true
  # Print classified stop counters after each script.
  metrics: false

# prompt: "(threadctl) "
`)
	return err
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
