package config

import (
	"fmt"
	"strings"

	"github.com/dev-tams/prunekit/internal/policy"
	"github.com/dev-tams/prunekit/internal/schedule"
)

// Validate checks the whole config before any storage I/O happens, so a bad
// policy name or pattern fails at setup rather than mid-run.
func (c *Config) Validate() error {
	if c.Version == 0 {
		return fmt.Errorf("config.version must be > 0")
	}

	storageNames := map[string]struct{}{}
	for _, st := range c.Storage {
		if st.Name == "" {
			return fmt.Errorf("storage.name is required")
		}
		if _, ok := storageNames[st.Name]; ok {
			return fmt.Errorf("duplicate storage.name %q", st.Name)
		}
		storageNames[st.Name] = struct{}{}

		switch st.Type {
		case "local":
			if st.Local == nil || st.Local.Path == "" {
				return fmt.Errorf("storage %s: local.path is required", st.Name)
			}
		case "s3":
			if st.S3 == nil {
				return fmt.Errorf("storage %s: s3 config missing", st.Name)
			}
		case "":
			return fmt.Errorf("storage.type is required for storage %s", st.Name)
		default:
			return fmt.Errorf("storage %s: unknown type %q", st.Name, st.Type)
		}
	}

	if len(c.Prunes) == 0 {
		return fmt.Errorf("at least one prunes entry is required")
	}

	pruneNames := map[string]struct{}{}
	for i, p := range c.Prunes {
		if p.Name == "" {
			return fmt.Errorf("prunes[%d].name is required", i)
		}
		if _, ok := pruneNames[p.Name]; ok {
			return fmt.Errorf("duplicate prunes.name %q", p.Name)
		}
		pruneNames[p.Name] = struct{}{}

		if p.Storage == "" {
			return fmt.Errorf("prunes[%d].storage is required (must match a storage.name)", i)
		}
		if _, ok := storageNames[p.Storage]; !ok {
			return fmt.Errorf("prunes[%d].storage=%q not found in storage list", i, p.Storage)
		}
		if p.Root == "" {
			return fmt.Errorf("prunes[%d].root is required", i)
		}

		if !policy.Supported(p.Policy) {
			return fmt.Errorf("prunes[%d]: unsupported policy: %s", i, p.Policy)
		}

		if _, err := p.CompiledExpect(); err != nil {
			return fmt.Errorf("prunes[%d]: %w", i, err)
		}
		if _, _, err := p.Window(); err != nil {
			return fmt.Errorf("prunes[%d]: %w", i, err)
		}

		if s := strings.TrimSpace(p.Schedule); s != "" {
			if _, err := schedule.ParseCronSpec(s); err != nil {
				return fmt.Errorf("prunes[%d].schedule %q: %w", i, s, err)
			}
		}
	}

	return nil
}
