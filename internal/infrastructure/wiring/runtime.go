// Package wiring assembles the runtime from its parts. Construction is
// explicit so the dependency graph is readable in one place.
package wiring

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/felixgeelhaar/agentflow/internal/infrastructure/config"
	"github.com/felixgeelhaar/agentflow/internal/infrastructure/executor"
	"github.com/felixgeelhaar/agentflow/internal/infrastructure/messaging"
	"github.com/felixgeelhaar/agentflow/pkg/ai"
	"github.com/felixgeelhaar/agentflow/pkg/application"
	"github.com/felixgeelhaar/agentflow/pkg/domain"
	"github.com/felixgeelhaar/agentflow/pkg/domain/events"
	"github.com/felixgeelhaar/agentflow/pkg/planner"
	"github.com/felixgeelhaar/agentflow/pkg/storage"
)

// Runtime holds the fully wired application.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      domain.Store
	Dispatcher *events.Dispatcher
	Provider   ai.Provider
	Planner    *planner.AgentPlanner
	Executor   *executor.LocalExecutor
	Router     *messaging.Router
	Scheduler  *application.DependencyScheduler
	Session    *application.ProjectSession
}

// NewRuntime wires a runtime rooted at the given workspace directory.
func NewRuntime(root string) (*Runtime, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Model)
	if err != nil {
		return nil, fmt.Errorf("configure AI provider: %w", err)
	}

	adapters, err := messaging.BuildAdapters(cfg.Messaging)
	if err != nil {
		return nil, fmt.Errorf("configure messaging: %w", err)
	}

	dispatcher := events.NewDispatcher()
	router := messaging.NewRouter(adapters, logger)
	exec := executor.NewLocalExecutor(store, provider, logger)
	plan := planner.NewAgentPlanner(provider, logger)
	scheduler := application.NewDependencyScheduler(store, exec, router, dispatcher, logger)
	session := application.NewProjectSession(store, plan, scheduler, exec, router, dispatcher, logger)

	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Dispatcher: dispatcher,
		Provider:   provider,
		Planner:    plan,
		Executor:   exec,
		Router:     router,
		Scheduler:  scheduler,
		Session:    session,
	}, nil
}

func buildStore(cfg *config.Config) (domain.Store, error) {
	switch cfg.Storage.Backend {
	case "", "filesystem":
		return storage.NewFilesystemStore(cfg.Storage.Root), nil
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
