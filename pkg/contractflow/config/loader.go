package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Loader resolves Settings from, in increasing precedence: defaults, the YAML
// file, the .env file and the process environment.
type Loader struct {
	ConfigPath string
	EnvPath    string
	// EnvRequired makes a missing EnvPath an error instead of being skipped.
	EnvRequired bool
	// Environ overrides os.Environ, mainly for tests.
	Environ []string
}

// Load reads every source and validates the result.
func (l *Loader) Load() (Settings, error) {
	s := Defaults()

	if l.ConfigPath != "" {
		f, err := LoadFile(l.ConfigPath)
		if err != nil {
			return Settings{}, fmt.Errorf("load config: %w", err)
		}
		f.apply(&s)
	}

	env, err := l.environment()
	if err != nil {
		return Settings{}, err
	}

	setString(&s.BaseURL, env[EnvBaseURL])
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	s.AnonKey = env[EnvAnonKey]
	s.ServiceKey = env[EnvServiceRoleKey]
	if s.ServiceKey == "" {
		s.ServiceKey = env[EnvServiceKey]
	}

	if s.Proxy.HTTPProxy == "" && s.Proxy.HTTPSProxy == "" && s.Proxy.NoProxy == "" {
		s.Proxy.HTTPProxy = firstOf(env, "HTTP_PROXY", "http_proxy")
		s.Proxy.HTTPSProxy = firstOf(env, "HTTPS_PROXY", "https_proxy")
		s.Proxy.NoProxy = firstOf(env, "NO_PROXY", "no_proxy")
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// environment merges the .env file with the process environment. The process
// environment is only read, never modified.
func (l *Loader) environment() (map[string]string, error) {
	env := map[string]string{}

	if l.EnvPath != "" {
		vals, err := godotenv.Read(l.EnvPath)
		switch {
		case err == nil:
			for k, v := range vals {
				env[k] = v
			}
		case errors.Is(err, fs.ErrNotExist) && !l.EnvRequired:
		default:
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	environ := l.Environ
	if environ == nil {
		environ = os.Environ()
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		env[k] = v
	}
	return env, nil
}

func firstOf(env map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := env[k]; v != "" {
			return v
		}
	}
	return ""
}
