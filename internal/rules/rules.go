// Package rules holds the scanner rule-set: the embedded default rules, TOML
// rendering in the scanner's configuration format, and loading of an
// externally supplied rule-set.
package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Rule is one detection rule. Keywords, when present, must co-occur with a
// match; they suppress false positives for formats with no distinctive prefix.
type Rule struct {
	ID          string   `toml:"id"`
	Description string   `toml:"description"`
	Regex       string   `toml:"regex"`
	SecretGroup int      `toml:"secretGroup,omitempty"`
	Keywords    []string `toml:"keywords,omitempty"`
	Tags        []string `toml:"tags,omitempty"`
}

// Set is a rule-set file.
type Set struct {
	Title string `toml:"title,omitempty"`
	Rules []Rule `toml:"rules"`
}

// Default returns the embedded rule-set for LLM provider API keys.
func Default() Set {
	return Set{
		Title: "leaktrace LLM API key rules",
		Rules: []Rule{
			{
				ID:          "openai-api-key",
				Description: "OpenAI API Key detected",
				Regex:       `sk-(proj-)?([a-zA-Z0-9]{20,70})`,
				Keywords:    []string{"openai", "sk-"},
				Tags:        []string{"api", "key", "llm", "openai"},
			},
			{
				ID:          "anthropic-api-key",
				Description: "Anthropic API Key detected",
				Regex:       `sk-ant-api\d{2}-[\w-]{95}`,
				Keywords:    []string{"anthropic", "sk-ant-"},
				Tags:        []string{"api", "key", "llm", "anthropic"},
			},
			{
				ID:          "litellm-proxy-key",
				Description: "LiteLLM Proxy Key detected",
				Regex:       `sk-litellm-[a-zA-Z0-9]{24,64}`,
				Keywords:    []string{"litellm", "sk-litellm-"},
				Tags:        []string{"api", "key", "llm", "litellm"},
			},
			{
				ID:          "fireworks-ai-api-key",
				Description: "Fireworks AI API Key detected",
				Regex:       `fw-[a-zA-Z0-9]{48}`,
				Keywords:    []string{"fireworks", "fw-"},
				Tags:        []string{"api", "key", "llm", "fireworksai"},
			},
			{
				ID:          "together-ai-api-key",
				Description: "Together AI API Key detected",
				Regex:       `[a-fA-F0-9]{64}`,
				Keywords:    []string{"TOGETHER_API_KEY", "together_api_key", "together-api-key"},
				Tags:        []string{"api", "key", "llm", "togetherai"},
			},
		},
	}
}

// Validate checks ids are unique and non-empty and every pattern compiles.
func (s Set) Validate() error {
	if len(s.Rules) == 0 {
		return errors.New("rule-set has no rules")
	}
	seen := map[string]bool{}
	var errs []error
	for i, r := range s.Rules {
		id := strings.TrimSpace(r.ID)
		switch {
		case id == "":
			errs = append(errs, fmt.Errorf("rule %d: missing id", i))
			continue
		case seen[id]:
			errs = append(errs, fmt.Errorf("rule %q: duplicate id", id))
		}
		seen[id] = true
		if r.Regex == "" {
			errs = append(errs, fmt.Errorf("rule %q: missing regex", id))
			continue
		}
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", id, err))
			continue
		}
		if r.SecretGroup < 0 || r.SecretGroup > re.NumSubexp() {
			errs = append(errs, fmt.Errorf("rule %q: secretGroup %d out of range", id, r.SecretGroup))
		}
	}
	return errors.Join(errs...)
}

// Marshal renders the set as scanner TOML.
func (s Set) Marshal() ([]byte, error) {
	body, err := toml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding rule-set: %w", err)
	}
	header := "# Scanner rule-set generated by leaktrace.\n\n"
	return append([]byte(header), body...), nil
}

// Write renders the set to path with owner-only permissions.
func (s Set) Write(path string) error {
	body, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating rule-set directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return fmt.Errorf("writing rule-set: %w", err)
	}
	return nil
}

// Load reads and validates an external rule-set file.
func Load(path string) (Set, error) {
	var s Set
	b, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("reading rule-set: %w", err)
	}
	if err := toml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parsing rule-set %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("rule-set %s: %w", path, err)
	}
	return s, nil
}

// Prepare returns the path of the rule-set to hand to the scanner along with
// the parsed set. An external path is validated and used as is; otherwise
// the default set is written into dir. cleanup removes a generated file and
// is a no-op for external ones.
func Prepare(external, dir string) (path string, set Set, cleanup func(), err error) {
	noop := func() {}
	if external != "" {
		set, err = Load(external)
		if err != nil {
			return "", Set{}, noop, err
		}
		return external, set, noop, nil
	}
	set = Default()
	path = filepath.Join(dir, "rules.toml")
	if err := set.Write(path); err != nil {
		return "", Set{}, noop, err
	}
	return path, set, func() { _ = os.Remove(path) }, nil
}
