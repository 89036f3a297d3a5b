// Package storage provides Store implementations: an in-memory store for
// tests and embedding, and a filesystem store persisting JSON under
// .agentflow/.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

// MemoryStore is an in-memory Store. Entities are copied on the way in and
// out so callers never share pointers with the store; conditional writes
// (ClaimTask) are serialized by the store mutex.
type MemoryStore struct {
	mu sync.RWMutex

	projects  map[string]*orchestration.Project
	tasks     map[string]*orchestration.Task
	agents    map[string]*orchestration.Agent
	documents map[string]*orchestration.Document

	// Insertion order for deterministic listings.
	projectOrder []string
	taskOrder    []string
	agentOrder   []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:  make(map[string]*orchestration.Project),
		tasks:     make(map[string]*orchestration.Task),
		agents:    make(map[string]*orchestration.Agent),
		documents: make(map[string]*orchestration.Document),
	}
}

func (s *MemoryStore) CreateProject(_ context.Context, project *orchestration.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if _, exists := s.projects[project.ID]; exists {
		return fmt.Errorf("project %s already exists", project.ID)
	}
	s.projects[project.ID] = cloneProject(project)
	s.projectOrder = append(s.projectOrder, project.ID)
	return nil
}

func (s *MemoryStore) GetProject(_ context.Context, id string) (*orchestration.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("get project %s: %w", id, orchestration.ErrProjectNotFound)
	}
	return cloneProject(project), nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, project *orchestration.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[project.ID]; !ok {
		return fmt.Errorf("update project %s: %w", project.ID, orchestration.ErrProjectNotFound)
	}
	s.projects[project.ID] = cloneProject(project)
	return nil
}

func (s *MemoryStore) ListProjects(_ context.Context) ([]*orchestration.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*orchestration.Project, 0, len(s.projectOrder))
	for _, id := range s.projectOrder {
		projects = append(projects, cloneProject(s.projects[id]))
	}
	return projects, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, task *orchestration.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	s.tasks[task.ID] = cloneTask(task)
	s.taskOrder = append(s.taskOrder, task.ID)
	return nil
}

func (s *MemoryStore) SaveTask(_ context.Context, task *orchestration.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return fmt.Errorf("save task %s: %w", task.ID, orchestration.ErrTaskNotFound)
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*orchestration.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %s: %w", id, orchestration.ErrTaskNotFound)
	}
	return cloneTask(task), nil
}

func (s *MemoryStore) GetProjectTasks(_ context.Context, projectID string) ([]*orchestration.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*orchestration.Task, 0)
	for _, id := range s.taskOrder {
		if task := s.tasks[id]; task.ProjectID == projectID {
			tasks = append(tasks, cloneTask(task))
		}
	}
	return tasks, nil
}

func (s *MemoryStore) ClaimTask(_ context.Context, id string, from, to orchestration.TaskStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return false, fmt.Errorf("claim task %s: %w", id, orchestration.ErrTaskNotFound)
	}
	if task.Status != from {
		return false, nil
	}
	task.Status = to
	task.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) AssignTask(_ context.Context, taskID string, agentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("assign task %s: %w", taskID, orchestration.ErrTaskNotFound)
	}
	task.AssigneeIDs = append([]string(nil), agentIDs...)
	if task.Status == orchestration.TaskUnassigned {
		task.Status = orchestration.TaskAssigned
	}
	task.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CreateAgent(_ context.Context, agent *orchestration.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if _, exists := s.agents[agent.ID]; exists {
		return fmt.Errorf("agent %s already exists", agent.ID)
	}
	s.agents[agent.ID] = cloneAgent(agent)
	s.agentOrder = append(s.agentOrder, agent.ID)
	return nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (*orchestration.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("get agent %s: %w", id, orchestration.ErrAgentNotFound)
	}
	return cloneAgent(agent), nil
}

func (s *MemoryStore) GetAgentByName(_ context.Context, name string) (*orchestration.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.agentOrder {
		if s.agents[id].Name == name {
			return cloneAgent(s.agents[id]), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListAgents(_ context.Context) ([]*orchestration.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]*orchestration.Agent, 0, len(s.agentOrder))
	for _, id := range s.agentOrder {
		agents = append(agents, cloneAgent(s.agents[id]))
	}
	return agents, nil
}

func (s *MemoryStore) CreateDocument(_ context.Context, doc *orchestration.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	s.documents[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (*orchestration.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("get document %s: %w", id, orchestration.ErrDocumentNotFound)
	}
	return cloneDocument(doc), nil
}

func cloneProject(p *orchestration.Project) *orchestration.Project {
	c := *p
	c.TaskIDs = append([]string(nil), p.TaskIDs...)
	c.TeamAgentIDs = append([]string(nil), p.TeamAgentIDs...)
	if p.Metadata != nil {
		c.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	if p.StartedAt != nil {
		started := *p.StartedAt
		c.StartedAt = &started
	}
	return &c
}

func cloneTask(t *orchestration.Task) *orchestration.Task {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.BlockedBy = append([]string(nil), t.BlockedBy...)
	c.Blocks = append([]string(nil), t.Blocks...)
	c.AssigneeIDs = append([]string(nil), t.AssigneeIDs...)
	return &c
}

func cloneAgent(a *orchestration.Agent) *orchestration.Agent {
	c := *a
	c.Specialties = append([]string(nil), a.Specialties...)
	return &c
}

func cloneDocument(d *orchestration.Document) *orchestration.Document {
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	return &c
}
