// ABOUTME: Prompt builders for every agent operation
// ABOUTME: Instructions fix the output shape; the model is never asked for prose where code is expected
package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harper/mwgen/internal/models"
)

// jsonBlock renders v as indented JSON for embedding in a prompt
func jsonBlock(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func parsePrompt(text string) string {
	return fmt.Sprintf(`Analyze the following natural-language request for an HTTP middleware and structure it as JSON.

Request: %s

The JSON object must contain exactly these keys:
1. "intent": the main purpose of the request, as a short string
2. "entities": an array of the key objects or concepts the middleware acts on
3. "requirements": an array of concrete functional requirements
4. "constraints": an array of limits or non-functional considerations
5. "parameters": an object of configuration values as key-value pairs

Rules:
1. Respond with valid JSON only.
2. Do not include any text outside the JSON object.
3. All keys must be lowercase English.
4. Values may be written in the language of the request.`, text)
}

func parseEnhancedPrompt(text string, similar []models.Case) string {
	prior := make([]models.Requirements, 0, len(similar))
	for _, c := range similar {
		prior = append(prior, c.Requirements)
	}

	return fmt.Sprintf(`Produce enhanced structured requirements for the new request below, using the requirements of similar earlier cases as examples.

New request: %s

Requirements of similar earlier cases (most similar first):
%s

Rules:
1. Respond with a valid JSON object with the keys "intent", "entities", "requirements", "constraints", "parameters".
2. All keys must be lowercase English.
3. Do not include any text outside the JSON object.
4. An empty response is not allowed.`, text, jsonBlock(prior))
}

func codeRules(language string) string {
	return fmt.Sprintf(`Rules:
1. Write the code in %s.
2. Include the comments the code needs.
3. Output code only, with no explanation before or after it.
4. The middleware function takes an HTTP request as its only input.`, language)
}

func generatePrompt(req models.Requirements, language string) string {
	return fmt.Sprintf(`Generate HTTP middleware code that satisfies these requirements:
%s

%s`, jsonBlock(req), codeRules(language))
}

func generateEnhancedPrompt(req models.Requirements, similar []models.Case, language string) string {
	prior := make([]string, 0, len(similar))
	for _, c := range similar {
		prior = append(prior, c.Code)
	}

	return fmt.Sprintf(`Generate improved HTTP middleware code for these requirements, using the earlier implementations below as reference.

Requirements:
%s

%s

Earlier implementations (most similar first):
%s`, jsonBlock(req), codeRules(language), jsonBlock(prior))
}

func validatePrompt(code string, req models.Requirements, language string) string {
	return fmt.Sprintf(`Check whether the following %s code satisfies the given requirements.

Code:
%s

Requirements:
%s

Report the validation result and any improvements needed.`, language, code, jsonBlock(req))
}

func classifyPrompt(feedback string) string {
	return fmt.Sprintf(`Analyze the following validation feedback and classify the areas needing improvement as a JSON object.

Feedback:
%s

Use exactly these keys:
1. "%s": security problems
2. "%s": performance problems
3. "%s": error handling problems
4. "%s": code structure problems
5. "%s": functional problems

Each key maps to an array of specific problems. Respond with the JSON object only.`,
		feedback,
		models.CategorySecurity,
		models.CategoryPerformance,
		models.CategoryErrorHandling,
		models.CategoryStructure,
		models.CategoryFunctionality)
}

func improvePrompt(original, feedback string, analysis models.ImprovementAnalysis, language string) string {
	var areas strings.Builder
	for _, c := range analysis.Categories() {
		fmt.Fprintf(&areas, "%s:\n", c.Name)
		if len(c.Items) == 0 {
			areas.WriteString("  (none)\n")
		}
		for _, item := range c.Items {
			fmt.Fprintf(&areas, "  - %s\n", item)
		}
	}

	return fmt.Sprintf(`Improve the given code using the validation result and analysis below.

Original code:
%s

Validation result:
%s

Areas needing improvement:
%s
Improvement rules:
1. Fix every problem raised in the validation result.
2. Strengthen error handling and edge-case handling.
3. Improve performance and security.
4. Keep all existing functionality.
5. Explain every change in a code comment.
6. Follow standard HTTP middleware patterns.

Response format:
1. Provide %s code only.
2. Do not include extra explanation or Markdown.`, original, feedback, areas.String(), language)
}

func verifyPrompt(original, improved string, req models.Requirements) string {
	return fmt.Sprintf(`Check whether the improved code still satisfies the original requirements and is actually an improvement.

Original code:
%s

Improved code:
%s

Requirements:
%s

Answer with True or False only.`, original, improved, jsonBlock(req))
}

func samplesPrompt(n int) string {
	return fmt.Sprintf(`Generate %d HTTP request middleware requests as a JSON array of strings.

Categories to consider:
1. Request header validation or rewriting (for example Content-Type, Authorization)
2. Request body validation or transformation (for example JSON validity, size limits)
3. Request parameter handling (for example URL parameter validation, query sanitizing)
4. Request security (for example CORS, XSS prevention, JWT verification)
5. Request optimization (for example compression, caching, rate limiting)

Example response:
[
  "Middleware that checks every incoming HTTP request has Content-Type application/json",
  "Middleware that verifies a valid JWT token is present in the request header",
  "Middleware that limits the body of POST requests to 5MB"
]

Rules:
1. Each request must concern concrete HTTP request handling.
2. Each must be a realistic scenario for a real web application.
3. Cover security, performance, and data integrity.
4. The response must be a JSON array only.
5. Each request must be clear and specific.`, n)
}
