// ABOUTME: ImprovementAnalysis buckets validation feedback into five fixed categories
// ABOUTME: Every category is always a (possibly empty) ordered list
package models

// Category names as they appear on the wire
const (
	CategorySecurity      = "security_issues"
	CategoryPerformance   = "performance_issues"
	CategoryErrorHandling = "error_handling"
	CategoryStructure     = "code_structure"
	CategoryFunctionality = "functionality_issues"
)

// ImprovementAnalysis is derived from validation feedback and never persisted on its own
type ImprovementAnalysis struct {
	SecurityIssues      []string `json:"security_issues"`
	PerformanceIssues   []string `json:"performance_issues"`
	ErrorHandling       []string `json:"error_handling"`
	CodeStructure       []string `json:"code_structure"`
	FunctionalityIssues []string `json:"functionality_issues"`
}

// Category is one named bucket of an analysis
type Category struct {
	Name  string
	Items []string
}

// EmptyAnalysis returns the all-empty default
func EmptyAnalysis() ImprovementAnalysis {
	return ImprovementAnalysis{}.Normalize()
}

// Normalize replaces nil categories with empty lists
func (a ImprovementAnalysis) Normalize() ImprovementAnalysis {
	if a.SecurityIssues == nil {
		a.SecurityIssues = []string{}
	}
	if a.PerformanceIssues == nil {
		a.PerformanceIssues = []string{}
	}
	if a.ErrorHandling == nil {
		a.ErrorHandling = []string{}
	}
	if a.CodeStructure == nil {
		a.CodeStructure = []string{}
	}
	if a.FunctionalityIssues == nil {
		a.FunctionalityIssues = []string{}
	}
	return a
}

// Categories returns the five buckets in their fixed order
func (a ImprovementAnalysis) Categories() []Category {
	a = a.Normalize()
	return []Category{
		{Name: CategorySecurity, Items: a.SecurityIssues},
		{Name: CategoryPerformance, Items: a.PerformanceIssues},
		{Name: CategoryErrorHandling, Items: a.ErrorHandling},
		{Name: CategoryStructure, Items: a.CodeStructure},
		{Name: CategoryFunctionality, Items: a.FunctionalityIssues},
	}
}

// Total counts issues across all categories
func (a ImprovementAnalysis) Total() int {
	n := 0
	for _, c := range a.Categories() {
		n += len(c.Items)
	}
	return n
}
