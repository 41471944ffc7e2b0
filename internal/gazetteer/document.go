package gazetteer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Point is one entrance as stored in the gazetteer document.
type Point struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"`
	Active bool    `json:"active"`
}

// Document is the gazetteer file layout:
// district -> street -> building -> entrance -> point.
type Document map[string]map[string]map[string]map[string]Point

// LoadDocument reads a gazetteer document from disk.
func LoadDocument(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse gazetteer %s: %w", path, err)
	}
	for district, streets := range doc {
		for street, buildings := range streets {
			for building, entrances := range buildings {
				for entrance, p := range entrances {
					if p.Radius < 0 {
						return nil, fmt.Errorf("gazetteer %s/%s/%s/%s: negative radius", district, street, building, entrance)
					}
				}
			}
		}
	}
	return doc, nil
}

// SaveDocument writes doc to path through a temp file and rename, so a
// concurrent reader never sees a half-written document.
func SaveDocument(path string, doc Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode gazetteer: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gazetteer-*.json")
	if err != nil {
		return fmt.Errorf("create temp gazetteer: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp gazetteer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp gazetteer: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace gazetteer: %w", err)
	}
	return nil
}

// LoadAliases reads the optional alternate-spelling table
// (alternate spelling -> canonical street). An empty path yields no aliases.
func LoadAliases(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	aliases := map[string]string{}
	if err := json.Unmarshal(raw, &aliases); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}
	return aliases, nil
}
