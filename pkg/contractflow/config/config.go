package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/contractflow/pkg/contractflow/internalerr"
)

// Environment keys read from the .env file and the process environment.
const (
	EnvBaseURL        = "VITE_SUPABASE_URL"
	EnvAnonKey        = "VITE_SUPABASE_ANON_KEY"
	EnvServiceRoleKey = "SUPABASE_SERVICE_ROLE_KEY"
	EnvServiceKey     = "SUPABASE_SERVICE_KEY"
)

// Timeouts bounds each remote stage.
type Timeouts struct {
	Register time.Duration `yaml:"register"`
	Ingest   time.Duration `yaml:"ingest"`
	Extract  time.Duration `yaml:"extract"`
	Analyze  time.Duration `yaml:"analyze"`
}

// Settings is the immutable process configuration handed to the pipeline.
type Settings struct {
	BaseURL string

	// ServiceKey is the elevated credential used for the record store.
	ServiceKey string
	// AnonKey is the restricted credential used for the functions.
	AnonKey string

	RestPath      string
	FunctionsPath string
	StorageBucket string
	Model         string
	ReviewType    string
	Timeouts      Timeouts

	// Output is a directory, gs://bucket/prefix or s3://bucket/prefix.
	Output string
	// S3Region and S3Endpoint apply to s3:// outputs only. Empty values use
	// the AWS default chain.
	S3Region   string
	S3Endpoint string
	// LedgerPath enables the sqlite run history when set.
	LedgerPath string
	// Pace limits documents per second; 0 means unlimited.
	Pace float64

	Proxy httpproxy.Config
}

// Defaults returns the settings used before any file or environment is applied.
func Defaults() Settings {
	return Settings{
		RestPath:      "/rest/v1",
		FunctionsPath: "/functions/v1",
		StorageBucket: "ingestions",
		Model:         "openai-gpt-5-nano",
		ReviewType:    "full_summary",
		Timeouts: Timeouts{
			Register: 60 * time.Second,
			Ingest:   180 * time.Second,
			Extract:  180 * time.Second,
			Analyze:  240 * time.Second,
		},
		Output: os.TempDir(),
	}
}

// RecordURL is the record-creation endpoint.
func (s Settings) RecordURL() string {
	return s.BaseURL + s.RestPath + "/contract_ingestions"
}

// FunctionURL is the endpoint of the named serverless function.
func (s Settings) FunctionURL(name string) string {
	return s.BaseURL + s.FunctionsPath + "/" + name
}

// Validate checks that everything needed before the first remote call is present.
func (s Settings) Validate() error {
	if s.ServiceKey == "" {
		return fmt.Errorf("missing %s: %w", EnvServiceRoleKey, internalerr.ErrInvalidConfig)
	}
	if s.BaseURL == "" {
		return fmt.Errorf("missing %s: %w", EnvBaseURL, internalerr.ErrInvalidConfig)
	}
	if s.AnonKey == "" {
		return fmt.Errorf("missing %s: %w", EnvAnonKey, internalerr.ErrInvalidConfig)
	}
	if s.Pace < 0 {
		return fmt.Errorf("pace must not be negative: %w", internalerr.ErrInvalidConfig)
	}
	for name, d := range map[string]time.Duration{
		"register": s.Timeouts.Register,
		"ingest":   s.Timeouts.Ingest,
		"extract":  s.Timeouts.Extract,
		"analyze":  s.Timeouts.Analyze,
	} {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive: %w", name, internalerr.ErrInvalidConfig)
		}
	}
	return nil
}

// File is the optional YAML configuration file. Credentials are never read from it.
type File struct {
	BaseURL       string    `yaml:"base_url"`
	RestPath      string    `yaml:"rest_path"`
	FunctionsPath string    `yaml:"functions_path"`
	StorageBucket string    `yaml:"storage_bucket"`
	Model         string    `yaml:"model"`
	ReviewType    string    `yaml:"review_type"`
	Timeouts      Timeouts  `yaml:"timeouts"`
	Output        string    `yaml:"output"`
	S3Region      string    `yaml:"s3_region"`
	S3Endpoint    string    `yaml:"s3_endpoint"`
	Ledger        string    `yaml:"ledger"`
	Pace          float64   `yaml:"pace"`
	Proxy         ProxyFile `yaml:"proxy"`
}

// ProxyFile holds explicit proxy settings.
type ProxyFile struct {
	HTTP    string `yaml:"http"`
	HTTPS   string `yaml:"https"`
	NoProxy string `yaml:"no_proxy"`
}

// LoadFile loads the YAML configuration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

// apply overlays non-zero file values onto s.
func (f *File) apply(s *Settings) {
	setString(&s.BaseURL, f.BaseURL)
	setString(&s.RestPath, f.RestPath)
	setString(&s.FunctionsPath, f.FunctionsPath)
	setString(&s.StorageBucket, f.StorageBucket)
	setString(&s.Model, f.Model)
	setString(&s.ReviewType, f.ReviewType)
	setString(&s.Output, f.Output)
	setString(&s.S3Region, f.S3Region)
	setString(&s.S3Endpoint, f.S3Endpoint)
	setString(&s.LedgerPath, f.Ledger)
	if f.Pace != 0 {
		s.Pace = f.Pace
	}
	setDuration(&s.Timeouts.Register, f.Timeouts.Register)
	setDuration(&s.Timeouts.Ingest, f.Timeouts.Ingest)
	setDuration(&s.Timeouts.Extract, f.Timeouts.Extract)
	setDuration(&s.Timeouts.Analyze, f.Timeouts.Analyze)
	setString(&s.Proxy.HTTPProxy, f.Proxy.HTTP)
	setString(&s.Proxy.HTTPSProxy, f.Proxy.HTTPS)
	setString(&s.Proxy.NoProxy, f.Proxy.NoProxy)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
