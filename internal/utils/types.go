package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BatchEntry is one download in a batch file.
type BatchEntry struct {
	URL        string   `yaml:"link"`
	OutputPath string   `yaml:"op"`
	Headers    []string `yaml:"headers,omitempty"`
}

type batchFile struct {
	Downloads []BatchEntry `yaml:"downloads"`
}

// ReadBatchFile loads a YAML list of downloads. Both a bare list and a
// "downloads:" mapping are accepted. Entries without an output path get one
// inferred from the URL.
func ReadBatchFile(filePath string) ([]BatchEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading batch file: %w", err)
	}
	var entries []BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		var wrapped batchFile
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("error parsing batch file: %w", err)
		}
		entries = wrapped.Downloads
	}
	if len(entries) == 0 {
		return nil, errors.New("batch file has no entries")
	}
	for i := range entries {
		entries[i].URL = strings.TrimSpace(entries[i].URL)
		if entries[i].URL == "" {
			return nil, fmt.Errorf("batch entry %d has no link", i+1)
		}
		if entries[i].OutputPath == "" {
			entries[i].OutputPath = InferFileName(entries[i].URL)
		}
	}
	return entries, nil
}
