package strategy

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategiesFile is the on-disk shape of custom strategy definitions.
//
//	active: scalper
//	strategies:
//	  - name: scalper
//	    positionSizing: fixed
//	    ...
type StrategiesFile struct {
	Active     string            `yaml:"active"`
	Strategies []TradingStrategy `yaml:"strategies"`
}

// LoadStrategiesFile parses path and registers each strategy on m, then
// activates the file's active strategy if one is named.
func LoadStrategiesFile(ctx context.Context, m *Manager, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read strategies file: %w", err)
	}

	var file StrategiesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse strategies file %s: %w", path, err)
	}

	for _, s := range file.Strategies {
		if err := m.AddStrategy(ctx, s); err != nil {
			return err
		}
	}
	if file.Active != "" {
		return m.SetActiveStrategy(ctx, file.Active)
	}
	return nil
}

// WriteStrategiesFile writes file to path in the format LoadStrategiesFile reads.
func WriteStrategiesFile(path string, file StrategiesFile) error {
	raw, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encode strategies file: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write strategies file %s: %w", path, err)
	}
	return nil
}
