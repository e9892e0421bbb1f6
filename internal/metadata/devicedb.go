package metadata

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DevicePattern describes how filenames of one device look.
type DevicePattern struct {
	Extensions       []string `yaml:"extensions"`
	FilenamePrefixes []string `yaml:"filename_prefixes"`
	FilenameContains []string `yaml:"filename_contains"`
}

// DeviceRule pairs a device name with its pattern. Rules are kept in
// document order: the first matching device wins.
type DeviceRule struct {
	Name    string
	Pattern DevicePattern
}

// DeviceDB is the external device pattern database, read-only per run.
type DeviceDB struct {
	rules []DeviceRule
}

// LoadDeviceDB reads {device_patterns: {name: {...}}} from a JSON (or
// YAML) document. The document is decoded through yaml.Node because
// pattern lookup order must follow insertion order, which encoding/json
// maps would lose. A missing file yields an empty database.
func LoadDeviceDB(path string) (*DeviceDB, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &DeviceDB{}, nil
	}
	if err != nil {
		return nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	db := &DeviceDB{}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return db, nil
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "device_patterns" {
			continue
		}
		patterns := doc.Content[i+1]
		if patterns.Kind != yaml.MappingNode {
			break
		}
		for j := 0; j+1 < len(patterns.Content); j += 2 {
			var pattern DevicePattern
			if err := patterns.Content[j+1].Decode(&pattern); err != nil {
				return nil, err
			}
			db.rules = append(db.rules, DeviceRule{
				Name:    patterns.Content[j].Value,
				Pattern: pattern,
			})
		}
		break
	}

	return db, nil
}

// Len reports the number of loaded device rules.
func (db *DeviceDB) Len() int {
	return len(db.rules)
}

// Match resolves a file path to a device name by filename prefix or
// substring, optionally restricted to the pattern's extensions. Returns
// "" when nothing matches.
func (db *DeviceDB) Match(path string) string {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))

	for _, rule := range db.rules {
		if !extensionAllowed(ext, rule.Pattern.Extensions) {
			continue
		}
		for _, prefix := range rule.Pattern.FilenamePrefixes {
			if prefix != "" && strings.HasPrefix(stem, strings.ToUpper(prefix)) {
				return rule.Name
			}
		}
		for _, sub := range rule.Pattern.FilenameContains {
			if sub != "" && strings.Contains(stem, strings.ToUpper(sub)) {
				return rule.Name
			}
		}
	}
	return ""
}

// extensionAllowed treats an empty extension list as "any extension".
func extensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		if a == ext {
			return true
		}
	}
	return false
}
