package sources

import (
	"fmt"
	"os"
	"sort"

	"github.com/marcelsud/assistant-gateway/policy"
	"github.com/marcelsud/assistant-gateway/webhook"
	"github.com/marcelsud/assistant-gateway/webhook/signature"
	"gopkg.in/yaml.v3"
)

/* Loader manages the partner catalog from sources.yaml
 * Read once at startup; lookups afterwards are read-only
 */

// Config represents the structure of sources.yaml
type Config struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig represents a single partner in the YAML file
type SourceConfig struct {
	Source        string               `yaml:"source"`
	Secrets       []string             `yaml:"secrets"` // whsec_ keys; ${VAR} is expanded from the environment
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

// SubscriptionConfig represents a single subscription in the YAML file
type SubscriptionConfig struct {
	Name           string   `yaml:"name"`
	EventTypes     []string `yaml:"event_types"`
	TargetURL      string   `yaml:"target_url"`
	ExpectedStatus int      `yaml:"expected_status"` // Default: 202
	Helper         string   `yaml:"helper"`
}

// Loader holds the loaded sources
type Loader struct {
	sources map[webhook.Source]*Source
}

// NewLoader creates a new source loader
func NewLoader() *Loader {
	return &Loader{
		sources: make(map[webhook.Source]*Source),
	}
}

// Load reads and parses the sources file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading sources file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses sources YAML
func (l *Loader) Parse(data []byte) error {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing sources YAML: %w", err)
	}

	for _, sc := range config.Sources {
		src, err := webhook.ParseSource(sc.Source)
		if err != nil {
			return fmt.Errorf("validating source: %w", err)
		}
		if _, exists := l.sources[src]; exists {
			return fmt.Errorf("validating source: %s is declared more than once", src)
		}

		source := &Source{Source: src}
		for _, encoded := range sc.Secrets {
			secret, err := signature.ParseSecret(os.ExpandEnv(encoded))
			if err != nil {
				return fmt.Errorf("validating source: invalid secret for %s: %w", src, err)
			}
			source.Secrets = append(source.Secrets, secret)
		}

		for _, subc := range sc.Subscriptions {
			// Set default expected status to 202 if not specified
			expectedStatus := subc.ExpectedStatus
			if expectedStatus == 0 {
				expectedStatus = 202
			}
			source.Subscriptions = append(source.Subscriptions, Subscription{
				Name:           subc.Name,
				EventTypes:     subc.EventTypes,
				TargetURL:      subc.TargetURL,
				ExpectedStatus: expectedStatus,
				Helper:         policy.HelperID(subc.Helper),
			})
		}

		if err := source.Validate(); err != nil {
			return fmt.Errorf("validating source: %w", err)
		}
		l.sources[src] = source
	}

	return nil
}

// Get retrieves a source by its identifier
func (l *Loader) Get(source webhook.Source) (*Source, error) {
	s, exists := l.sources[source]
	if !exists {
		return nil, fmt.Errorf("source not configured: %s", source)
	}
	return s, nil
}

// List returns all loaded sources in declaration order of webhook.Sources
func (l *Loader) List() []*Source {
	out := make([]*Source, 0, len(l.sources))
	for _, s := range l.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Exists checks if a source is configured
func (l *Loader) Exists(source webhook.Source) bool {
	_, exists := l.sources[source]
	return exists
}

// CheckHelpers reports subscriptions that name a helper missing from the policy table
func (l *Loader) CheckHelpers(table *policy.Table) error {
	known := make(map[policy.HelperID]bool)
	for _, h := range table.Helpers() {
		known[h] = true
	}
	for _, s := range l.List() {
		for _, sub := range s.Subscriptions {
			if sub.Helper != "" && !known[sub.Helper] {
				return fmt.Errorf("subscription %s of %s targets unknown helper %q", sub.Name, s.Source, sub.Helper)
			}
		}
	}
	return nil
}
