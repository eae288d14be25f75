package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vibejudge/vibejudge/pkg/models"
)

// agentOutput is the wire shape of a judge response after schema validation.
// Unknown top-level keys are dropped by the decoder.
type agentOutput struct {
	Scores       map[string]float64 `json:"scores"`
	OverallScore *float64           `json:"overall_score"`
	Confidence   float64            `json:"confidence"`
	Evidence     []evidenceOutput   `json:"evidence"`
	Summary      string             `json:"summary"`
	Strengths    []string           `json:"strengths"`
	Improvements []string           `json:"improvements"`

	// ai_detection only.
	AIUsageEstimate    string `json:"ai_usage_estimate"`
	DevelopmentPattern string `json:"development_pattern"`
}

type evidenceOutput struct {
	Finding        string `json:"finding"`
	File           string `json:"file"`
	Line           int    `json:"line"`
	Commit         string `json:"commit"`
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
}

const severityEnum = `["critical", "high", "medium", "low", "info"]`

// schemaFor builds the JSON schema of one agent's output. Scores must carry
// exactly the agent's sub-dimensions; extra top-level fields are tolerated
// (and dropped on bind).
func schemaFor(d Descriptor) string {
	dimProps := make([]string, 0, len(d.Dimensions))
	dimNames := make([]string, 0, len(d.Dimensions))
	for _, dim := range d.Dimensions {
		dimProps = append(dimProps, fmt.Sprintf(`%q: {"type": "number"}`, dim))
		dimNames = append(dimNames, fmt.Sprintf("%q", dim))
	}

	extraProps := ""
	extraRequired := ""
	if d.Name == models.AgentAIDetection {
		extraProps = `,
    "ai_usage_estimate": {"type": "string", "enum": ["none", "minimal", "moderate", "heavy", "full"]},
    "development_pattern": {"type": "string", "enum": ["organic", "ai_assisted_iterative", "ai_assisted_bulk", "ai_generated"]}`
		extraRequired = `, "ai_usage_estimate", "development_pattern"`
	}

	return fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "scores": {
      "type": "object",
      "properties": {%s},
      "required": [%s]
    },
    "overall_score": {"type": "number"},
    "confidence": {"type": "number"},
    "evidence": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "finding": {"type": "string"},
          "file": {"type": "string"},
          "line": {"type": "integer"},
          "commit": {"type": "string"},
          "severity": {"type": "string", "enum": %s},
          "category": {"type": "string"},
          "recommendation": {"type": "string"}
        },
        "required": ["finding"]
      }
    },
    "summary": {"type": "string"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "improvements": {"type": "array", "items": {"type": "string"}}%s
  },
  "required": ["scores", "confidence", "evidence", "summary", "strengths", "improvements"%s]
}`, strings.Join(dimProps, ", "), strings.Join(dimNames, ", "), severityEnum, extraProps, extraRequired)
}

var compiledSchemas = map[models.AgentName]*gojsonschema.Schema{}

func init() {
	for name, d := range descriptors {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaFor(d)))
		if err != nil {
			panic(fmt.Sprintf("compile %s schema: %v", name, err))
		}
		compiledSchemas[name] = schema
	}
}

// validateAndBind checks raw against the agent schema and decodes it.
func validateAndBind(name models.AgentName, raw json.RawMessage) (*agentOutput, error) {
	schema := compiledSchemas[name]
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate %s output: %w", name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%s output rejected by schema: %s", name, strings.Join(msgs, "; "))
	}

	var out agentOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("bind %s output: %w", name, err)
	}
	return &out, nil
}
