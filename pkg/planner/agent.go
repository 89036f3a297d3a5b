// Package planner turns a natural-language goal into a structured plan via an
// AI provider: a plan document, a dependency-keyed task graph, and a team
// recommendation.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/felixgeelhaar/agentflow/pkg/ai"
	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

const planSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["plan_document", "tasks"],
  "properties": {
    "plan_document": { "type": "string" },
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "title"],
        "properties": {
          "key": { "type": "string" },
          "title": { "type": "string" },
          "description": { "type": "string" },
          "priority": { "type": "string" },
          "estimated_minutes": { "type": "integer" },
          "required_specialties": { "type": "array", "items": { "type": "string" } },
          "blocked_by_keys": { "type": "array", "items": { "type": "string" } }
        }
      }
    },
    "human_tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "title"]
      }
    },
    "team_recommendation": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "role"]
      }
    },
    "estimated_total_minutes": { "type": "integer" }
  }
}`

var planSchemaLoader = gojsonschema.NewStringLoader(planSchemaJSON)

var depthInstructions = map[orchestration.ResearchDepth]string{
	orchestration.ResearchNone:     "Do not research. Plan directly from the goal as stated.",
	orchestration.ResearchQuick:    "Spend minimal effort clarifying the goal before planning.",
	orchestration.ResearchStandard: "Think through the problem domain, major risks, and unknowns before planning.",
	orchestration.ResearchDeep:     "Thoroughly analyze the problem domain, alternatives, risks, and edge cases before planning. Record your analysis in the research notes.",
}

// AgentPlanner decomposes goals with an AI provider. An invalid response is
// retried once with a corrective prompt before giving up.
type AgentPlanner struct {
	provider ai.Provider
	logger   *slog.Logger
}

// NewAgentPlanner creates a provider-backed planner.
func NewAgentPlanner(provider ai.Provider, logger *slog.Logger) *AgentPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentPlanner{provider: provider, logger: logger}
}

// Plan produces a complete planner result for the goal, or an error when the
// provider fails or returns unusable output twice.
func (p *AgentPlanner) Plan(ctx context.Context, userInput, projectID string, depth orchestration.ResearchDepth) (*orchestration.PlannerResult, error) {
	prompt := p.buildPrompt(userInput, depth)

	resp, err := p.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning request: %w", err)
	}

	result, err := p.parseResult(resp.Text)
	if err != nil {
		p.logger.Warn("planner returned invalid output, retrying", "project_id", projectID, "error", err)
		retryPrompt := prompt + "\n\nIMPORTANT: Your previous response was invalid: " + err.Error() +
			"\nReturn ONLY the JSON object described above with no extra text."
		retryResp, retryErr := p.complete(ctx, retryPrompt)
		if retryErr != nil {
			return nil, fmt.Errorf("planning retry request: %w", retryErr)
		}
		result, err = p.parseResult(retryResp.Text)
		if err != nil {
			return nil, fmt.Errorf("planner returned invalid output after retry: %w", err)
		}
	}

	result.ProjectID = projectID
	p.normalize(result)

	p.logger.Info("plan generated",
		"project_id", projectID,
		"tasks", len(result.Tasks),
		"human_tasks", len(result.HumanTasks),
		"agents", len(result.TeamRecommendation))
	return result, nil
}

func (p *AgentPlanner) complete(ctx context.Context, prompt string) (*ai.CompletionResponse, error) {
	return p.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:      prompt,
		System:      "You are an expert technical program manager. You decompose goals into dependency-ordered task graphs and respond ONLY with the requested JSON.",
		Temperature: 0.2,
		MaxTokens:   4000,
	})
}

func (p *AgentPlanner) buildPrompt(userInput string, depth orchestration.ResearchDepth) string {
	instruction, ok := depthInstructions[depth]
	if !ok {
		instruction = depthInstructions[orchestration.ResearchStandard]
	}

	return fmt.Sprintf(`Task: Plan the following project goal end to end.
%s

Produce:
1. A plan document in markdown, starting with a single "# <title>" heading.
2. A set of atomic tasks with symbolic keys. Express ordering via blocked_by_keys
   referencing other task keys. The graph must be acyclic and every referenced
   key must exist.
3. Tasks that require a human decision or action go in human_tasks, not tasks.
4. A recommended team of agents with specialties matching the tasks'
   required_specialties.

Return ONLY a JSON object with no surrounding text, no markdown, and no code fences.

Format:
{
  "plan_document": "<markdown plan>",
  "tasks": [
    {
      "key": "<symbolic-key>",
      "title": "<title>",
      "description": "<description>",
      "priority": "low|medium|high",
      "estimated_minutes": <int>,
      "required_specialties": ["<specialty>"],
      "blocked_by_keys": ["<other-key>"]
    }
  ],
  "human_tasks": [ same shape as tasks ],
  "team_recommendation": [
    {
      "name": "<agent-name>",
      "role": "<role>",
      "description": "<description>",
      "specialties": ["<specialty>"]
    }
  ],
  "estimated_total_minutes": <int>,
  "research_notes": "<optional notes>"
}

Goal:
%s
`, instruction, userInput)
}

func (p *AgentPlanner) parseResult(text string) (*orchestration.PlannerResult, error) {
	cleanJSON := extractJSONPayload(text)
	if cleanJSON == "" {
		return nil, fmt.Errorf("response contained no JSON payload")
	}

	validation, err := gojsonschema.Validate(planSchemaLoader, gojsonschema.NewStringLoader(cleanJSON))
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if !validation.Valid() {
		issues := make([]string, 0, len(validation.Errors()))
		for _, desc := range validation.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("response failed schema validation: %s", strings.Join(issues, "; "))
	}

	var result orchestration.PlannerResult
	if err := json.Unmarshal([]byte(cleanJSON), &result); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &result, nil
}

// normalize fills in the fields the schema leaves optional: task types and
// priorities. Human tasks are forced to the human type regardless of what the
// model emitted.
func (p *AgentPlanner) normalize(result *orchestration.PlannerResult) {
	for i := range result.Tasks {
		if result.Tasks[i].TaskType == "" {
			result.Tasks[i].TaskType = orchestration.TaskTypeAgent
		}
		result.Tasks[i].Priority = orchestration.ParseTaskPriority(result.Tasks[i].Priority).String()
	}
	for i := range result.HumanTasks {
		result.HumanTasks[i].TaskType = orchestration.TaskTypeHuman
		result.HumanTasks[i].Priority = orchestration.ParseTaskPriority(result.HumanTasks[i].Priority).String()
	}
}

// extractJSONPayload strips code fences and surrounding prose, returning the
// first JSON object or array in the text.
func extractJSONPayload(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return clean
	}

	start := strings.IndexAny(clean, "{[")
	if start == -1 {
		return clean
	}
	end := strings.LastIndexAny(clean, "}]")
	if end == -1 || end <= start {
		return clean
	}
	return strings.TrimSpace(clean[start : end+1])
}
