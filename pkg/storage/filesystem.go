package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

const AgentflowDir = ".agentflow"
const ProjectsFile = "projects.json"
const TasksFile = "tasks.json"
const AgentsFile = "agents.json"
const DocumentsFile = "documents.json"

// FilesystemStore persists entities as JSON arrays under <root>/.agentflow/.
// The runtime is single-process; a store-level mutex serializes writes and
// makes ClaimTask an atomic compare-and-swap. Reads retry briefly to ride out
// transient filesystem errors.
type FilesystemStore struct {
	root        string
	mu          sync.Mutex
	retryConfig retry.Config
}

// NewFilesystemStore creates a store rooted at the given directory.
func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the store root directory.
func (s *FilesystemStore) Root() string {
	return s.root
}

// Initialize creates the .agentflow directory.
func (s *FilesystemStore) Initialize() error {
	path := filepath.Join(s.root, AgentflowDir)
	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", AgentflowDir, err)
	}
	return nil
}

// IsInitialized reports whether the .agentflow directory exists.
func (s *FilesystemStore) IsInitialized() bool {
	_, err := os.Stat(filepath.Join(s.root, AgentflowDir))
	return err == nil
}

// resolvePath ensures the path is within the .agentflow directory and
// prevents traversal.
func (s *FilesystemStore) resolvePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}
	baseDir := filepath.Join(s.root, AgentflowDir)
	cleanPath := filepath.Clean(filepath.Join(baseDir, filename))
	if !strings.HasPrefix(cleanPath, baseDir) || filepath.Dir(cleanPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}
	return cleanPath, nil
}

func (s *FilesystemStore) writeFile(filename string, v any) error {
	path, err := s.resolvePath(filename)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filename, err)
	}
	return os.WriteFile(path, data, 0600)
}

func (s *FilesystemStore) readFile(ctx context.Context, filename string, v any) error {
	retryer := retry.New[struct{}](s.retryConfig)

	_, err := retryer.Do(ctx, func(ctx context.Context) (struct{}, error) {
		path, err := s.resolvePath(filename)
		if err != nil {
			return struct{}{}, err
		}
		// #nosec G304 -- path is resolved and validated via resolvePath
		data, err := os.ReadFile(path)
		if err != nil {
			return struct{}{}, err
		}
		if err := json.Unmarshal(data, v); err != nil {
			return struct{}{}, fmt.Errorf("failed to unmarshal %s: %w", filename, err)
		}
		return struct{}{}, nil
	})
	return err
}

// loadProjects returns the persisted projects, treating a missing file as an
// empty store.
func (s *FilesystemStore) loadProjects(ctx context.Context) ([]*orchestration.Project, error) {
	var projects []*orchestration.Project
	if err := s.readFile(ctx, ProjectsFile, &projects); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return projects, nil
}

func (s *FilesystemStore) loadTasks(ctx context.Context) ([]*orchestration.Task, error) {
	var tasks []*orchestration.Task
	if err := s.readFile(ctx, TasksFile, &tasks); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return tasks, nil
}

func (s *FilesystemStore) loadAgents(ctx context.Context) ([]*orchestration.Agent, error) {
	var agents []*orchestration.Agent
	if err := s.readFile(ctx, AgentsFile, &agents); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return agents, nil
}

func (s *FilesystemStore) loadDocuments(ctx context.Context) ([]*orchestration.Document, error) {
	var docs []*orchestration.Document
	if err := s.readFile(ctx, DocumentsFile, &docs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return docs, nil
}

func (s *FilesystemStore) CreateProject(ctx context.Context, project *orchestration.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Initialize(); err != nil {
		return err
	}
	projects, err := s.loadProjects(ctx)
	if err != nil {
		return err
	}
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	for _, p := range projects {
		if p.ID == project.ID {
			return fmt.Errorf("project %s already exists", project.ID)
		}
	}
	projects = append(projects, project)
	return s.writeFile(ProjectsFile, projects)
}

func (s *FilesystemStore) GetProject(ctx context.Context, id string) (*orchestration.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("get project %s: %w", id, orchestration.ErrProjectNotFound)
}

func (s *FilesystemStore) UpdateProject(ctx context.Context, project *orchestration.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.loadProjects(ctx)
	if err != nil {
		return err
	}
	for i, p := range projects {
		if p.ID == project.ID {
			projects[i] = project
			return s.writeFile(ProjectsFile, projects)
		}
	}
	return fmt.Errorf("update project %s: %w", project.ID, orchestration.ErrProjectNotFound)
}

func (s *FilesystemStore) ListProjects(ctx context.Context) ([]*orchestration.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProjects(ctx)
}

func (s *FilesystemStore) CreateTask(ctx context.Context, task *orchestration.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Initialize(); err != nil {
		return err
	}
	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return err
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	for _, t := range tasks {
		if t.ID == task.ID {
			return fmt.Errorf("task %s already exists", task.ID)
		}
	}
	tasks = append(tasks, task)
	return s.writeFile(TasksFile, tasks)
}

func (s *FilesystemStore) SaveTask(ctx context.Context, task *orchestration.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveTaskLocked(ctx, task)
}

func (s *FilesystemStore) saveTaskLocked(ctx context.Context, task *orchestration.Task) error {
	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return err
	}
	for i, t := range tasks {
		if t.ID == task.ID {
			tasks[i] = task
			return s.writeFile(TasksFile, tasks)
		}
	}
	return fmt.Errorf("save task %s: %w", task.ID, orchestration.ErrTaskNotFound)
}

func (s *FilesystemStore) GetTask(ctx context.Context, id string) (*orchestration.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("get task %s: %w", id, orchestration.ErrTaskNotFound)
}

func (s *FilesystemStore) GetProjectTasks(ctx context.Context, projectID string) ([]*orchestration.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]*orchestration.Task, 0)
	for _, t := range tasks {
		if t.ProjectID == projectID {
			owned = append(owned, t)
		}
	}
	return owned, nil
}

func (s *FilesystemStore) ClaimTask(ctx context.Context, id string, from, to orchestration.TaskStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return false, err
	}
	for i, t := range tasks {
		if t.ID != id {
			continue
		}
		if t.Status != from {
			return false, nil
		}
		tasks[i].Status = to
		tasks[i].UpdatedAt = time.Now()
		if err := s.writeFile(TasksFile, tasks); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("claim task %s: %w", id, orchestration.ErrTaskNotFound)
}

func (s *FilesystemStore) AssignTask(ctx context.Context, taskID string, agentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return err
	}
	for i, t := range tasks {
		if t.ID != taskID {
			continue
		}
		tasks[i].AssigneeIDs = append([]string(nil), agentIDs...)
		if tasks[i].Status == orchestration.TaskUnassigned {
			tasks[i].Status = orchestration.TaskAssigned
		}
		tasks[i].UpdatedAt = time.Now()
		return s.writeFile(TasksFile, tasks)
	}
	return fmt.Errorf("assign task %s: %w", taskID, orchestration.ErrTaskNotFound)
}

func (s *FilesystemStore) CreateAgent(ctx context.Context, agent *orchestration.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Initialize(); err != nil {
		return err
	}
	agents, err := s.loadAgents(ctx)
	if err != nil {
		return err
	}
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	agents = append(agents, agent)
	return s.writeFile(AgentsFile, agents)
}

func (s *FilesystemStore) GetAgent(ctx context.Context, id string) (*orchestration.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.loadAgents(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("get agent %s: %w", id, orchestration.ErrAgentNotFound)
}

func (s *FilesystemStore) GetAgentByName(ctx context.Context, name string) (*orchestration.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.loadAgents(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, nil
}

func (s *FilesystemStore) ListAgents(ctx context.Context) ([]*orchestration.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAgents(ctx)
}

func (s *FilesystemStore) CreateDocument(ctx context.Context, doc *orchestration.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Initialize(); err != nil {
		return err
	}
	docs, err := s.loadDocuments(ctx)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	docs = append(docs, doc)
	return s.writeFile(DocumentsFile, docs)
}

func (s *FilesystemStore) GetDocument(ctx context.Context, id string) (*orchestration.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.loadDocuments(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("get document %s: %w", id, orchestration.ErrDocumentNotFound)
}
