// Package repoconfig implements the repository's INI-like config file:
// a [core] section plus one [remote "name"] section per configured
// remote, per §6's on-disk layout.
package repoconfig

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/objectrepo/corestore/internal/coreerr"
)

// Config is a parsed INI-like document: section name ("core", or
// `remote "origin"`) to an ordered set of key/value pairs. Hand-rolled
// rather than pulled from an ecosystem INI library, generalizing the
// teacher's line-oriented `parseRemotesFromConfig` (internal/gitcore/
// repository.go) from a single-purpose remote-URL scraper into a full
// section/key/value parser with a matching Marshal.
type Config struct {
	sections []string
	values   map[string]map[string]string
	keyOrder map[string][]string
}

// New returns an empty Config.
func New() *Config {
	return &Config{values: make(map[string]map[string]string), keyOrder: make(map[string][]string)}
}

// Parse reads an INI-like document into a Config.
func Parse(data []byte) (*Config, error) {
	cfg := New()
	section := ""
	for lineNo, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, coreerr.New(coreerr.MalformedObject, "repoconfig: line %d: unterminated section header", lineNo+1)
			}
			section = parseSectionHeader(line[1 : len(line)-1])
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, coreerr.New(coreerr.MalformedObject, "repoconfig: line %d: expected key = value", lineNo+1)
		}
		if section == "" {
			return nil, coreerr.New(coreerr.MalformedObject, "repoconfig: line %d: key outside any section", lineNo+1)
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		cfg.Set(section, key, val)
	}
	return cfg, nil
}

// parseSectionHeader normalizes `core` and `remote "origin"` headers to a
// canonical internal key.
func parseSectionHeader(header string) string {
	header = strings.TrimSpace(header)
	if name, ok := strings.CutPrefix(header, "remote "); ok {
		name = strings.TrimSpace(name)
		name = strings.Trim(name, `"`)
		return "remote:" + name
	}
	return header
}

// Get returns a value and whether it was present.
func (c *Config) Get(section, key string) (string, bool) {
	kv, ok := c.values[sectionKey(section)]
	if !ok {
		return "", false
	}
	v, ok := kv[key]
	return v, ok
}

// Set assigns a value, creating the section if needed.
func (c *Config) Set(section, key, value string) {
	sk := sectionKey(section)
	if _, ok := c.values[sk]; !ok {
		c.values[sk] = make(map[string]string)
		c.sections = append(c.sections, sk)
	}
	if _, exists := c.values[sk][key]; !exists {
		c.keyOrder[sk] = append(c.keyOrder[sk], key)
	}
	c.values[sk][key] = value
}

func sectionKey(section string) string {
	if section == "core" || section == "" {
		return "core"
	}
	if strings.HasPrefix(section, "remote:") {
		return section
	}
	return "remote:" + section
}

// RemoteNames returns every configured remote's name, sorted.
func (c *Config) RemoteNames() []string {
	var names []string
	for _, s := range c.sections {
		if name, ok := strings.CutPrefix(s, "remote:"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Marshal serializes the config back to INI-like text, core section
// first, remotes sorted by name thereafter, preserving within-section key
// insertion order.
func (c *Config) Marshal() []byte {
	var buf bytes.Buffer
	if kv, ok := c.values["core"]; ok {
		buf.WriteString("[core]\n")
		writeKeys(&buf, kv, c.keyOrder["core"])
	}
	for _, name := range c.RemoteNames() {
		sk := "remote:" + name
		fmt.Fprintf(&buf, "[remote %q]\n", name)
		writeKeys(&buf, c.values[sk], c.keyOrder[sk])
	}
	return buf.Bytes()
}

func writeKeys(buf *bytes.Buffer, kv map[string]string, order []string) {
	for _, k := range order {
		fmt.Fprintf(buf, "%s = %s\n", k, kv[k])
	}
}
