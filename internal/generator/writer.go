package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats understood by WriteDataset and ReadDataset.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// WriteDataset serializes the dataset into respondents.<format> under dir and
// returns the written path.
func WriteDataset(dataset Dataset, dir, format string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	switch format {
	case "", FormatJSON:
		path := filepath.Join(dir, "respondents.json")
		return path, writeJSON(path, dataset)
	case FormatYAML:
		path := filepath.Join(dir, "respondents.yaml")
		return path, writeYAML(path, dataset)
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

// ReadDataset loads a dataset written by WriteDataset; the format follows the
// file extension.
func ReadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read %s: %w", path, err)
	}

	var dataset Dataset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &dataset)
	default:
		err = json.Unmarshal(data, &dataset)
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return dataset, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

func writeYAML(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode yaml for %s: %w", path, err)
	}
	return encoder.Close()
}
