package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/appforge/engine/internal/llm"
	appErr "github.com/appforge/engine/pkg/errors"
)

const maxAnalysisTokens = 2048

// Frameworks the analyzer may choose from.
var allowedFrameworks = map[string]bool{
	"nextjs": true,
	"flask":  true,
	"vue":    true,
}

// TableSpec is a proposed table outline for projects that need storage.
type TableSpec struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// AppSpec is the structured project specification produced from a free-text
// requirement.
type AppSpec struct {
	ProjectName   string   `json:"projectName"`
	Description   string   `json:"description"`
	Framework     string   `json:"framework"`
	Features      []string `json:"features"`
	NeedsDatabase bool     `json:"needsDatabase"`
	Database      *struct {
		Tables []TableSpec `json:"tables"`
	} `json:"database,omitempty"`
}

// Analyzer turns a free-text requirement into an AppSpec via the completion
// service. The single most fragile step of the pipeline: the model must
// honor an implicit JSON contract, so the reply is validated before use.
type Analyzer struct {
	completer llm.Client
}

func New(completer llm.Client) *Analyzer {
	return &Analyzer{completer: completer}
}

const promptTemplate = `Analyze the following requirement and produce a project plan.

Requirement: %s

Reply with a JSON object and nothing else, in exactly this shape:
{
  "projectName": "project name (lowercase, hyphen-separated, e.g. my-app)",
  "description": "short project description",
  "framework": "nextjs or flask or vue",
  "features": ["feature 1", "feature 2"],
  "needsDatabase": true/false,
  "database": {
    "tables": [
      {
        "name": "table name",
        "fields": ["field:type"]
      }
    ]
  }
}

Return only the JSON, no other content.`

// Analyze sends the requirement to the completion service and parses the
// constrained JSON specification out of the raw reply.
func (a *Analyzer) Analyze(ctx context.Context, requirement string) (*AppSpec, error) {
	reply, err := a.completer.Complete(ctx, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(promptTemplate, requirement)},
	}, maxAnalysisTokens)
	if err != nil {
		return nil, err
	}

	raw, ok := extractJSONObject(reply)
	if !ok {
		return nil, appErr.New(appErr.CodeSpecUnparseable, "completion contained no JSON object")
	}

	var spec AppSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeSpecUnparseable, "completion JSON did not parse")
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *AppSpec) validate() error {
	switch {
	case strings.TrimSpace(s.ProjectName) == "":
		return appErr.New(appErr.CodeSpecUnparseable, "specification missing projectName")
	case strings.TrimSpace(s.Description) == "":
		return appErr.New(appErr.CodeSpecUnparseable, "specification missing description")
	case !allowedFrameworks[s.Framework]:
		return appErr.New(appErr.CodeSpecUnparseable, "specification framework not recognized").
			WithMeta("framework", s.Framework)
	case len(s.Features) == 0:
		return appErr.New(appErr.CodeSpecUnparseable, "specification missing features")
	}
	return nil
}

// TechStack derives the display tech-stack list for the chosen framework.
func (s *AppSpec) TechStack() []string {
	switch s.Framework {
	case "flask":
		return []string{"flask", "Python"}
	case "vue":
		return []string{"vue", "TypeScript", "Vite"}
	default:
		return []string{s.Framework, "TypeScript", "Tailwind CSS"}
	}
}

// extractJSONObject returns the first balanced {...} substring of raw.
// String literals are honored so braces inside values do not unbalance
// the scan.
func extractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
