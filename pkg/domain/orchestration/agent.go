package orchestration

import "time"

// Agent is a reusable worker profile. Agents are shared across projects:
// the session looks up by name before creating to avoid duplicates.
type Agent struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Description string   `json:"description,omitempty"`
	Specialties []string `json:"specialties,omitempty"`

	// Backend identifies the execution backend for this agent profile.
	Backend string `json:"backend,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewAgent creates an agent profile.
func NewAgent(name, role, description string, specialties []string, backend string) *Agent {
	return &Agent{
		Name:        name,
		Role:        role,
		Description: description,
		Specialties: specialties,
		Backend:     backend,
		CreatedAt:   time.Now(),
	}
}

// Document is a persisted artifact produced during planning, such as the
// generated plan document linked from a project.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDocument creates a document.
func NewDocument(title, content string, tags []string) *Document {
	return &Document{
		Title:     title,
		Content:   content,
		Tags:      tags,
		CreatedAt: time.Now(),
	}
}
