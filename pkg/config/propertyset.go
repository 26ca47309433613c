package config

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/vecgraph/ngt/pkg/telemetry"
)

// PropertySet is a flat, ordered key/value store persisted as the "prf"
// file in the on-disk directory layout, grounded on the original
// library's PropertySet: tab-separated "key\tvalue" lines, typed getters
// that fall back to a default and log a warning on parse failure instead
// of erroring.
type PropertySet struct {
	values map[string]string
}

// NewPropertySet returns an empty property set.
func NewPropertySet() *PropertySet {
	return &PropertySet{values: make(map[string]string)}
}

// Set stores value (formatted with fmt.Sprint) under key.
func (p *PropertySet) Set(key string, value interface{}) {
	p.values[key] = fmt.Sprint(value)
}

// Get returns the raw string for key, or "" if absent.
func (p *PropertySet) Get(key string) string {
	return p.values[key]
}

// GetFloat returns key parsed as float64. It returns defval silently if key
// is absent, and defval with a logged warning if the value is unparseable.
func (p *PropertySet) GetFloat(key string, defval float64) float64 {
	raw, ok := p.values[key]
	if !ok {
		return defval
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warnf("config: illegal property %s=%q: %v", key, raw, err)
		return defval
	}
	return v
}

// GetInt returns key parsed as int64. It returns defval silently if key is
// absent, and defval with a logged warning if the value is unparseable.
func (p *PropertySet) GetInt(key string, defval int64) int64 {
	raw, ok := p.values[key]
	if !ok {
		return defval
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		telemetry.Warnf("config: illegal property %s=%q: %v", key, raw, err)
		return defval
	}
	return v
}

// GetBool returns key parsed as bool, or defval if absent/unparseable.
func (p *PropertySet) GetBool(key string, defval bool) bool {
	raw, ok := p.values[key]
	if !ok {
		return defval
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		telemetry.Warnf("config: illegal property %s=%q: %v", key, raw, err)
		return defval
	}
	return v
}

// Save writes the set as tab-separated "key\tvalue" lines, keys sorted for
// a deterministic diff-friendly file.
func (p *PropertySet) Save(w io.Writer) error {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	bw := bufio.NewWriter(w)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", k, p.values[k]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadPropertySet reads a prf file previously written by Save. Malformed
// lines are skipped with a logged warning rather than failing the whole
// load, matching the original library's tolerant parser.
func LoadPropertySet(r io.Reader) (*PropertySet, error) {
	p := NewPropertySet()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tokens := strings.SplitN(line, "\t", 2)
		if len(tokens) != 2 {
			telemetry.Warnf("config: illegal property line %q", line)
			continue
		}
		p.values[tokens[0]] = tokens[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: load property set: %w", err)
	}
	return p, nil
}
