// Package messaging delivers human-facing notifications through pluggable
// channel adapters.
package messaging

import (
	"context"
	"fmt"
)

// Notification is a channel-agnostic human-facing message.
type Notification struct {
	Kind      string `json:"kind"`
	ProjectID string `json:"project_id"`
	TaskID    string `json:"task_id,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// Notification kinds.
const (
	KindPlanReady        = "plan_ready"
	KindHumanTask        = "human_task"
	KindProjectCompleted = "project_completed"
)

// Adapter delivers a notification to one channel.
type Adapter interface {
	Name() string
	Type() string
	Send(ctx context.Context, n Notification) error
}

// AdapterConfig configures a single channel adapter.
type AdapterConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// BuildAdapters creates adapters from configuration, skipping disabled
// entries.
func BuildAdapters(configs []AdapterConfig) ([]Adapter, error) {
	var adapters []Adapter
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		adapter, err := createAdapter(cfg)
		if err != nil {
			return nil, fmt.Errorf("create adapter %q: %w", cfg.Name, err)
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

func createAdapter(cfg AdapterConfig) (Adapter, error) {
	switch cfg.Type {
	case "webhook":
		return NewWebhookAdapter(cfg), nil
	case "slack":
		return NewSlackAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown adapter type: %s", cfg.Type)
	}
}
