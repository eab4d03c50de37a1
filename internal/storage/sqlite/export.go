// ABOUTME: Export functionality for stored cases
// ABOUTME: Supports YAML and Markdown export formats
package sqlite

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportData represents the complete exportable data structure
type ExportData struct {
	Version    string       `yaml:"version" json:"version"`
	ExportedAt string       `yaml:"exported_at" json:"exported_at"`
	Tool       string       `yaml:"tool" json:"tool"`
	Cases      []ExportCase `yaml:"cases" json:"cases"`
}

// ExportCase represents a case for export
type ExportCase struct {
	ID                    int64             `yaml:"id" json:"id"`
	CreatedAt             string            `yaml:"created_at" json:"created_at"`
	InputText             string            `yaml:"input_text" json:"input_text"`
	Requirements          ExportRequirement `yaml:"requirements" json:"requirements"`
	Code                  string            `yaml:"code" json:"code"`
	Documentation         string            `yaml:"documentation" json:"documentation"`
	Validation            string            `yaml:"validation" json:"validation"`
	ImprovedCode          string            `yaml:"improved_code,omitempty" json:"improved_code,omitempty"`
	ImprovedDocumentation string            `yaml:"improved_documentation,omitempty" json:"improved_documentation,omitempty"`
}

// ExportRequirement represents parsed requirements for export
type ExportRequirement struct {
	Intent       string         `yaml:"intent,omitempty" json:"intent,omitempty"`
	Entities     []string       `yaml:"entities,omitempty" json:"entities,omitempty"`
	Requirements []string       `yaml:"requirements,omitempty" json:"requirements,omitempty"`
	Constraints  []string       `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Parameters   map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Export collects every case, most recent first
func (s *Store) Export(ctx context.Context) (*ExportData, error) {
	cases, err := s.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "mwgen",
		Cases:      make([]ExportCase, 0, len(cases)),
	}

	for _, c := range cases {
		data.Cases = append(data.Cases, ExportCase{
			ID:        c.ID,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
			InputText: c.InputText,
			Requirements: ExportRequirement{
				Intent:       c.Requirements.Intent,
				Entities:     c.Requirements.Entities,
				Requirements: c.Requirements.Requirements,
				Constraints:  c.Requirements.Constraints,
				Parameters:   c.Requirements.Parameters,
			},
			Code:                  c.Code,
			Documentation:         c.Documentation,
			Validation:            c.Validation,
			ImprovedCode:          c.ImprovedCode,
			ImprovedDocumentation: c.ImprovedDocumentation,
		})
	}

	return data, nil
}

// ExportToYAML exports all cases to a YAML file
func (s *Store) ExportToYAML(ctx context.Context, outputPath string) error {
	data, err := s.Export(ctx)
	if err != nil {
		return err
	}

	return writeFile(outputPath, func(w io.Writer) error {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return encoder.Close()
	})
}

// ExportToMarkdown exports all cases to a Markdown file
func (s *Store) ExportToMarkdown(ctx context.Context, outputPath string) error {
	data, err := s.Export(ctx)
	if err != nil {
		return err
	}

	return writeFile(outputPath, func(w io.Writer) error {
		return WriteMarkdown(w, data)
	})
}

// WriteMarkdown renders export data as Markdown
func WriteMarkdown(w io.Writer, data *ExportData) error {
	_, _ = fmt.Fprintf(w, "# Middleware Cases Export - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(w, "Generated: %s\n\n", data.ExportedAt)

	if len(data.Cases) == 0 {
		_, err := fmt.Fprintln(w, "_No cases stored._")
		return err
	}

	for _, c := range data.Cases {
		_, _ = fmt.Fprintf(w, "## Case %d (%s)\n\n", c.ID, c.CreatedAt)
		_, _ = fmt.Fprintf(w, "**Request:** %s\n\n", c.InputText)
		if c.Requirements.Intent != "" {
			_, _ = fmt.Fprintf(w, "**Intent:** %s\n\n", c.Requirements.Intent)
		}
		if len(c.Requirements.Constraints) > 0 {
			_, _ = fmt.Fprintf(w, "*Constraints: %s*\n\n", strings.Join(c.Requirements.Constraints, ", "))
		}
		_, _ = fmt.Fprintf(w, "### Code\n\n```\n%s\n```\n\n", c.Code)
		_, _ = fmt.Fprintf(w, "### Documentation\n\n%s\n\n", c.Documentation)
		_, _ = fmt.Fprintf(w, "### Validation\n\n%s\n\n", c.Validation)
		if c.ImprovedCode != "" {
			_, _ = fmt.Fprintf(w, "### Improved Code\n\n```\n%s\n```\n\n", c.ImprovedCode)
			_, _ = fmt.Fprintf(w, "### Improved Documentation\n\n%s\n\n", c.ImprovedDocumentation)
		}
		if _, err := fmt.Fprintln(w, "---"); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w)
	}

	return nil
}

func writeFile(outputPath string, write func(w io.Writer) error) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
