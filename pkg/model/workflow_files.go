package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadWorkflowFile reads one workflow file, falling back to the file
// basename when the workflow has no name.
func ReadWorkflowFile(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	workflow, err := ReadWorkflow(f)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", path, err)
	}
	workflow.File = path
	if workflow.Name == "" {
		workflow.Name = filepath.Base(path)
	}
	return workflow, nil
}

// CollectWorkflowFiles expands a path into the workflow files it
// holds: the file itself, or the .yml/.yaml files directly inside a
// directory, sorted by name.
func CollectWorkflowFiles(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml") {
			files = append(files, filepath.Join(path, name))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no workflow files found in %s", path)
	}
	return files, nil
}
