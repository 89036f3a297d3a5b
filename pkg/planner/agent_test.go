package planner_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/agentflow/pkg/ai"
	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
	"github.com/felixgeelhaar/agentflow/pkg/planner"
)

type fakeProvider struct {
	responses []string
	calls     int
	err       error
	prompts   []string
}

func (f *fakeProvider) ID() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	text := f.responses[f.calls]
	if f.calls < len(f.responses)-1 {
		f.calls++
	}
	return &ai.CompletionResponse{Text: text, Model: "fake"}, nil
}

const validPlanJSON = `{
  "plan_document": "# Ship the beta\n\nDo the work.",
  "tasks": [
    {"key": "build", "title": "Build", "priority": "high", "blocked_by_keys": []},
    {"key": "ship", "title": "Ship", "priority": "urgent", "blocked_by_keys": ["build"]}
  ],
  "human_tasks": [
    {"key": "approve-copy", "title": "Approve the copy"}
  ],
  "team_recommendation": [
    {"name": "builder", "role": "engineer", "specialties": ["frontend"]}
  ],
  "estimated_total_minutes": 120
}`

func TestPlan_ParsesFencedResponse(t *testing.T) {
	provider := &fakeProvider{responses: []string{"```json\n" + validPlanJSON + "\n```"}}
	p := planner.NewAgentPlanner(provider, nil)

	result, err := p.Plan(context.Background(), "ship the beta", "p1", orchestration.ResearchStandard)
	if err != nil {
		t.Fatal(err)
	}

	if result.ProjectID != "p1" {
		t.Errorf("got project id %q", result.ProjectID)
	}
	if len(result.Tasks) != 2 || len(result.HumanTasks) != 1 {
		t.Fatalf("got %d tasks, %d human tasks", len(result.Tasks), len(result.HumanTasks))
	}
	if result.Tasks[0].TaskType != orchestration.TaskTypeAgent {
		t.Error("agent tasks should default to the agent type")
	}
	if result.HumanTasks[0].TaskType != orchestration.TaskTypeHuman {
		t.Error("human tasks must be forced to the human type")
	}
	if result.Tasks[1].Priority != "medium" {
		t.Errorf("unknown priority should normalize to medium, got %q", result.Tasks[1].Priority)
	}
	if result.EstimatedTotalMinutes != 120 {
		t.Errorf("got %d minutes", result.EstimatedTotalMinutes)
	}
}

func TestPlan_ExtractsJSONFromProse(t *testing.T) {
	provider := &fakeProvider{responses: []string{"Here is your plan:\n" + validPlanJSON + "\nLet me know!"}}
	p := planner.NewAgentPlanner(provider, nil)

	result, err := p.Plan(context.Background(), "ship it", "p1", orchestration.ResearchNone)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tasks) != 2 {
		t.Errorf("got %d tasks", len(result.Tasks))
	}
}

func TestPlan_RetriesOnceOnInvalidOutput(t *testing.T) {
	provider := &fakeProvider{responses: []string{"I cannot produce JSON, sorry.", validPlanJSON}}
	p := planner.NewAgentPlanner(provider, nil)

	result, err := p.Plan(context.Background(), "ship it", "p1", orchestration.ResearchQuick)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tasks) != 2 {
		t.Errorf("retry should have produced the plan, got %d tasks", len(result.Tasks))
	}
	if len(provider.prompts) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(provider.prompts))
	}
	if !strings.Contains(provider.prompts[1], "previous response was invalid") {
		t.Error("retry prompt should correct the model")
	}
}

func TestPlan_GivesUpAfterSecondInvalidOutput(t *testing.T) {
	provider := &fakeProvider{responses: []string{`{"tasks": "not-an-array"}`, "still not json"}}
	p := planner.NewAgentPlanner(provider, nil)

	_, err := p.Plan(context.Background(), "ship it", "p1", orchestration.ResearchStandard)
	if err == nil {
		t.Fatal("expected failure after two invalid responses")
	}
	if !strings.Contains(err.Error(), "after retry") {
		t.Errorf("got %v", err)
	}
}

func TestPlan_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	provider := &fakeProvider{err: boom}
	p := planner.NewAgentPlanner(provider, nil)

	_, err := p.Plan(context.Background(), "ship it", "p1", orchestration.ResearchStandard)
	if !errors.Is(err, boom) {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestPlan_DepthChangesPrompt(t *testing.T) {
	deep := &fakeProvider{responses: []string{validPlanJSON}}
	p := planner.NewAgentPlanner(deep, nil)
	if _, err := p.Plan(context.Background(), "ship it", "p1", orchestration.ResearchDeep); err != nil {
		t.Fatal(err)
	}

	none := &fakeProvider{responses: []string{validPlanJSON}}
	p = planner.NewAgentPlanner(none, nil)
	if _, err := p.Plan(context.Background(), "ship it", "p1", orchestration.ResearchNone); err != nil {
		t.Fatal(err)
	}

	if deep.prompts[0] == none.prompts[0] {
		t.Error("research depth should change the prompt")
	}
	if !strings.Contains(none.prompts[0], "Do not research") {
		t.Error("none depth should suppress research")
	}
}
