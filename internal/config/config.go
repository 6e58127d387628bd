package config

import (
	"fmt"
	"regexp"
	"sort"
)

// Config is the root configuration: the API namespaces to merge, the
// credentials model, and output locations.
type Config struct {
	APIs     map[string]*APIConfig `json:"apis" yaml:"apis"`
	Auth     AuthSettings          `json:"auth,omitempty" yaml:"auth,omitempty"`
	Output   OutputConfig          `json:"output,omitempty" yaml:"output,omitempty"`
	CacheDir string                `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`

	path string
}

// APIConfig groups one or more spec sources under a single API namespace.
type APIConfig struct {
	// Name is the namespace key in the config map; set by Load.
	Name string `json:"-" yaml:"-"`

	Specs       []SpecSource `json:"specs" yaml:"specs"`
	AuthType    string       `json:"auth_type,omitempty" yaml:"auth_type,omitempty"`
	ServiceName string       `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	Enabled     *bool        `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Include     []string     `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude     []string     `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	includeRe []*regexp.Regexp
	excludeRe []*regexp.Regexp
}

// SpecSource is a single spec document (URL plus an optional overlay file).
type SpecSource struct {
	URL     string `json:"url" yaml:"url"`
	Overlay string `json:"overlay,omitempty" yaml:"overlay,omitempty"`
}

// AuthSettings configures the two supported credential models.
type AuthSettings struct {
	ClientCredentials ClientCredentialsAuth `json:"client_credentials,omitempty" yaml:"client_credentials,omitempty"`
	MetalToken        MetalTokenAuth        `json:"metal_token,omitempty" yaml:"metal_token,omitempty"`
}

type ClientCredentialsAuth struct {
	TokenURL string `json:"token_url,omitempty" yaml:"token_url,omitempty"`
}

type MetalTokenAuth struct {
	HeaderName string `json:"header_name,omitempty" yaml:"header_name,omitempty"`
}

type OutputConfig struct {
	MergedSpecPath string `json:"merged_spec_path,omitempty" yaml:"merged_spec_path,omitempty"`
}

const (
	AuthTypeMetalToken        = "metal_token"
	AuthTypeClientCredentials = "client_credentials"

	DefaultTokenURL        = "https://api.equinix.com/oauth2/v1/token"
	DefaultMetalHeaderName = "X-Auth-Token"
	DefaultCacheDir        = "cache/specs"
	DefaultMergedSpecPath  = "merged-openapi.yaml"
)

func (c *Config) ApplyDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.Output.MergedSpecPath == "" {
		c.Output.MergedSpecPath = DefaultMergedSpecPath
	}
	if c.Auth.ClientCredentials.TokenURL == "" {
		c.Auth.ClientCredentials.TokenURL = DefaultTokenURL
	}
	if c.Auth.MetalToken.HeaderName == "" {
		c.Auth.MetalToken.HeaderName = DefaultMetalHeaderName
	}
	for name, api := range c.APIs {
		api.Name = name
		if api.Enabled == nil {
			enabled := true
			api.Enabled = &enabled
		}
		if api.ServiceName == "" {
			api.ServiceName = name
		}
	}
}

// Validate checks the config and compiles include/exclude patterns.
// Pattern errors fail here, at load time, not during filtering.
func (c *Config) Validate() error {
	for _, name := range c.APINames() {
		api := c.APIs[name]
		if len(api.Specs) == 0 {
			return fmt.Errorf("apis[%s]: at least one spec source is required", name)
		}
		for i, src := range api.Specs {
			if src.URL == "" {
				return fmt.Errorf("apis[%s].specs[%d]: url is required", name, i)
			}
		}
		switch api.AuthType {
		case "", AuthTypeMetalToken, AuthTypeClientCredentials:
		default:
			return fmt.Errorf("apis[%s]: unsupported auth_type %q", name, api.AuthType)
		}
		var err error
		api.includeRe, err = compilePatterns(api.Include)
		if err != nil {
			return fmt.Errorf("apis[%s].include: %w", name, err)
		}
		api.excludeRe, err = compilePatterns(api.Exclude)
		if err != nil {
			return fmt.Errorf("apis[%s].exclude: %w", name, err)
		}
	}
	return nil
}

// Patterns are matched case-insensitively against the original
// (pre-prefix) operationId.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// APINames returns the configured namespace names in sorted order so the
// merged output is reproducible across runs.
func (c *Config) APINames() []string {
	names := make([]string, 0, len(c.APIs))
	for name := range c.APIs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) APIConfigFor(name string) (*APIConfig, bool) {
	api, ok := c.APIs[name]
	return api, ok
}

// Path reports where the config was loaded from.
func (c *Config) Path() string { return c.path }

func (a *APIConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// IncludePatterns returns the compiled include patterns. Populated by Validate.
func (a *APIConfig) IncludePatterns() []*regexp.Regexp { return a.includeRe }

// ExcludePatterns returns the compiled exclude patterns. Populated by Validate.
func (a *APIConfig) ExcludePatterns() []*regexp.Regexp { return a.excludeRe }
