// ABOUTME: Case is one persisted run of the middleware generation pipeline
// ABOUTME: Base fields are written once; improved fields are both present or both absent
package models

import (
	"errors"
	"strings"
	"time"
)

// Case is the unit of persisted work
type Case struct {
	ID                    int64        `json:"id"`
	CreatedAt             time.Time    `json:"created_at"`
	InputText             string       `json:"input_text"`
	Requirements          Requirements `json:"requirements"`
	Code                  string       `json:"code"`
	Documentation         string       `json:"documentation"`
	Validation            string       `json:"validation"`
	ImprovedCode          string       `json:"improved_code,omitempty"`
	ImprovedDocumentation string       `json:"improved_documentation,omitempty"`
}

// HasImprovement reports whether the improved revision has been recorded
func (c *Case) HasImprovement() bool {
	return c.ImprovedCode != "" && c.ImprovedDocumentation != ""
}

// Validate checks that a case is complete enough to persist
func (c *Case) Validate() error {
	if strings.TrimSpace(c.InputText) == "" {
		return errors.New("input text cannot be empty")
	}
	if c.Code == "" {
		return errors.New("code cannot be empty")
	}
	if c.Documentation == "" {
		return errors.New("documentation cannot be empty")
	}
	if c.Validation == "" {
		return errors.New("validation cannot be empty")
	}
	if (c.ImprovedCode == "") != (c.ImprovedDocumentation == "") {
		return errors.New("improved code and improved documentation must be set together")
	}
	return nil
}

// Day returns the UTC calendar date the case was created on
func (c *Case) Day() string {
	return c.CreatedAt.UTC().Format("2006-01-02")
}
