package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadBrands reads a YAML mapping of vehicle name to brand. A missing file
// gives an empty map.
func LoadBrands(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read brands: %w", err)
	}
	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal brands: %w", err)
	}
	brands := make(map[string]string, len(raw))
	for vehicle, brand := range raw {
		vehicle = strings.TrimSpace(vehicle)
		brand = strings.TrimSpace(brand)
		if vehicle == "" || brand == "" {
			continue
		}
		brands[vehicle] = brand
	}
	return brands, nil
}
