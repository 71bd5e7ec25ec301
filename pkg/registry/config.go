// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/toolgate/pkg/errors"
)

// ServerNameRegex validates server names. Names must start with a
// letter and contain only letters, numbers, hyphens, and underscores.
// Maximum length is 64 characters.
var ServerNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// Scope determines where a server configuration applies.
type Scope string

const (
	// ScopeGlobal applies everywhere.
	ScopeGlobal Scope = "global"
	// ScopeProject binds the server to a single project.
	ScopeProject Scope = "project"
)

// DefaultCallTimeout bounds tool calls when a config does not set one.
const DefaultCallTimeout = 30 * time.Second

// ServerConfig describes one tool-provider server. Configs are created
// and edited by an external collaborator; the registry only reads them.
type ServerConfig struct {
	// ID is the stable unique identifier.
	ID string `yaml:"id" json:"id"`

	// Name is the display name.
	Name string `yaml:"name" json:"name"`

	// Command is the executable to run (e.g., "npx", "python").
	Command string `yaml:"command" json:"command"`

	// Args are command-line arguments.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env are additional environment variables in KEY=VALUE format.
	Env []string `yaml:"env,omitempty" json:"env,omitempty"`

	// Enabled gates whether the server may be started at all.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// AutoStart includes the server in bulk startup. Defaults to true
	// when absent from a stored record.
	AutoStart bool `yaml:"auto_start" json:"autoStart"`

	// Scope is global or project.
	Scope Scope `yaml:"scope,omitempty" json:"scope,omitempty"`

	// ProjectID binds a project-scoped server to its project.
	ProjectID string `yaml:"project_id,omitempty" json:"projectId,omitempty"`

	// Timeout is the per-call bound in seconds. Defaults to 30.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// serverConfigRaw mirrors ServerConfig with pointer fields where the
// zero value and an absent key must be told apart.
type serverConfigRaw struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Command   string   `yaml:"command" json:"command"`
	Args      []string `yaml:"args,omitempty" json:"args,omitempty"`
	Env       []string `yaml:"env,omitempty" json:"env,omitempty"`
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	AutoStart *bool    `yaml:"auto_start" json:"autoStart"`
	Scope     Scope    `yaml:"scope,omitempty" json:"scope,omitempty"`
	ProjectID string   `yaml:"project_id,omitempty" json:"projectId,omitempty"`
	Timeout   int      `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

func (r serverConfigRaw) toConfig() ServerConfig {
	autoStart := true
	if r.AutoStart != nil {
		autoStart = *r.AutoStart
	}
	return ServerConfig{
		ID:        r.ID,
		Name:      r.Name,
		Command:   r.Command,
		Args:      r.Args,
		Env:       r.Env,
		Enabled:   r.Enabled,
		AutoStart: autoStart,
		Scope:     r.Scope,
		ProjectID: r.ProjectID,
		Timeout:   r.Timeout,
	}
}

// UnmarshalYAML applies the auto_start default when the key is absent.
func (c *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw serverConfigRaw
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = raw.toConfig()
	return nil
}

// CallTimeout returns the per-call bound as a duration.
func (c *ServerConfig) CallTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultCallTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

// Validate checks a server configuration for structural problems.
func (c *ServerConfig) Validate() error {
	if c.ID == "" {
		return &errors.ValidationError{Field: "id", Message: "server id is required"}
	}
	if err := ValidateServerName(c.ID); err != nil {
		return err
	}
	if c.Command == "" {
		return &errors.ValidationError{Field: "command", Message: "command is required"}
	}
	if c.Timeout < 0 {
		return &errors.ValidationError{Field: "timeout", Message: "timeout must be non-negative"}
	}
	if c.Scope != "" && c.Scope != ScopeGlobal && c.Scope != ScopeProject {
		return &errors.ValidationError{
			Field:      "scope",
			Message:    fmt.Sprintf("invalid scope %q", c.Scope),
			Suggestion: "use \"global\" or \"project\"",
		}
	}
	if c.Scope == ScopeProject && c.ProjectID == "" {
		return &errors.ValidationError{
			Field:   "project_id",
			Message: "project-scoped servers require a project id",
		}
	}
	for i, arg := range c.Args {
		if err := ValidateArg(arg); err != nil {
			return errors.Wrapf(err, "args[%d]", i)
		}
	}
	for i, env := range c.Env {
		if err := ValidateEnv(env); err != nil {
			return errors.Wrapf(err, "env[%d]", i)
		}
	}
	return nil
}

// ValidateServerName validates a server identifier.
func ValidateServerName(name string) error {
	if name == "" {
		return &errors.ValidationError{Field: "id", Message: "server id is required"}
	}
	if len(name) > 64 {
		return &errors.ValidationError{Field: "id", Message: "server id exceeds 64 character limit"}
	}
	if !ServerNameRegex.MatchString(name) {
		return &errors.ValidationError{
			Field:      "id",
			Message:    fmt.Sprintf("invalid server id %q", name),
			Suggestion: "start with a letter; use only letters, numbers, hyphens, and underscores",
		}
	}
	return nil
}

// shellInjectionPatterns are patterns that could indicate shell injection attempts.
var shellInjectionPatterns = []string{
	";", "&&", "||", "|", "`", "$(", "${", "\n", "\r",
}

// ValidateArg validates a command argument for shell injection.
func ValidateArg(arg string) error {
	for _, pattern := range shellInjectionPatterns {
		if strings.Contains(arg, pattern) {
			return fmt.Errorf("argument contains potentially unsafe pattern %q", pattern)
		}
	}
	return nil
}

var envKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateEnv validates an environment variable entry.
func ValidateEnv(env string) error {
	parts := strings.SplitN(env, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("environment variable must be in KEY=VALUE format")
	}

	key := parts[0]
	if key == "" {
		return fmt.Errorf("environment variable key is required")
	}
	if !envKeyRegex.MatchString(key) {
		return fmt.Errorf("invalid environment variable key: %s", key)
	}

	// ${VAR} is allowed for runtime substitution; other shell patterns
	// are not.
	value := parts[1]
	for _, pattern := range shellInjectionPatterns {
		if pattern == "${" {
			continue
		}
		if strings.Contains(value, pattern) {
			return fmt.Errorf("environment value contains potentially unsafe pattern %q", pattern)
		}
	}

	return nil
}

// sensitiveKeyPatterns are patterns that indicate a sensitive value.
var sensitiveKeyPatterns = []string{
	"SECRET", "TOKEN", "KEY", "PASSWORD", "CREDENTIAL", "AUTH", "API_KEY",
}

// IsSensitiveEnvKey returns true if the key appears to contain sensitive data.
func IsSensitiveEnvKey(key string) bool {
	upperKey := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upperKey, pattern) {
			return true
		}
	}
	return false
}

// RedactEnv redacts sensitive values from an environment variable list.
// Status output and logs go through this; raw env values never do.
func RedactEnv(envs []string) []string {
	result := make([]string, len(envs))
	for i, env := range envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 && IsSensitiveEnvKey(parts[0]) {
			result[i] = parts[0] + "=***REDACTED***"
		} else {
			result[i] = env
		}
	}
	return result
}

// ConfigFile is the on-disk shape of a server configuration file.
type ConfigFile struct {
	Servers []ServerConfig `yaml:"servers"`
}

// LoadConfigFile reads a YAML configuration file. A missing file is an
// empty config, not an error.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ConfigFile{}, nil
		}
		return nil, &errors.ConfigError{Key: path, Reason: "failed to read config file", Cause: err}
	}

	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &errors.ConfigError{Key: path, Reason: "failed to parse config file", Cause: err}
	}

	for i := range cfg.Servers {
		if err := cfg.Servers[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "server %q", cfg.Servers[i].ID)
		}
	}

	return &cfg, nil
}

// SaveConfigFile writes a YAML configuration file via tmp+rename.
func SaveConfigFile(path string, cfg *ConfigFile) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &errors.ConfigError{Key: path, Reason: "failed to marshal config", Cause: err}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return &errors.ConfigError{Key: path, Reason: "failed to write config file", Cause: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &errors.ConfigError{Key: path, Reason: "failed to save config file", Cause: err}
	}
	return nil
}
