package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agentflow/pkg/domain/orchestration"
)

var (
	startResearch string
	statusJSON    bool
)

var startCmd = &cobra.Command{
	Use:   "start <goal>",
	Short: "Create a project from a goal and plan it",
	Long: `Create a project from a natural-language goal, run the planner, and
leave the project awaiting approval.

Examples:
  agentflow start "Build a landing page for the beta launch"
  agentflow start --research deep "Migrate billing to usage-based pricing"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}

		depth := orchestration.ResearchDepth(startResearch)
		if !depth.IsValid() {
			return NewCLIError(
				fmt.Sprintf("unknown research depth %q", startResearch),
				"Valid depths: none, quick, standard, deep",
				nil,
			)
		}

		goal := strings.Join(args, " ")
		project, err := rt.Session.Start(cmd.Context(), goal, depth)
		if err != nil {
			return MapError(err)
		}

		if project.Status == orchestration.ProjectFailed {
			fmt.Printf("Planning failed for project %s: %s\n", project.ID, project.ErrorMessage())
			return nil
		}

		tasks, err := rt.Store.GetProjectTasks(cmd.Context(), project.ID)
		if err != nil {
			return MapError(err)
		}

		fmt.Printf("Project %s: %s\n", project.ID, project.Title)
		fmt.Printf("Plan has %d tasks and awaits approval.\n", len(tasks))
		fmt.Printf("Run 'agentflow approve %s' to start execution.\n", project.ID)
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <project-id>",
	Short: "Approve a plan and start execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		project, err := rt.Session.Approve(cmd.Context(), args[0])
		if err != nil {
			return MapError(err)
		}
		fmt.Printf("Project %s is executing.\n", project.ID)
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <project-id>",
	Short: "Pause an executing project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		project, err := rt.Session.Pause(cmd.Context(), args[0])
		if err != nil {
			return MapError(err)
		}
		fmt.Printf("Project %s is paused.\n", project.ID)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <project-id>",
	Short: "Resume a paused project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		project, err := rt.Session.Resume(cmd.Context(), args[0])
		if err != nil {
			return MapError(err)
		}
		fmt.Printf("Project %s is %s.\n", project.ID, project.Status)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		projects, err := rt.Store.ListProjects(cmd.Context())
		if err != nil {
			return MapError(err)
		}
		if len(projects) == 0 {
			fmt.Println("No projects yet. Run 'agentflow start <goal>' to create one.")
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%s  %-18s %s\n", p.ID, p.Status, p.Title)
		}
		return nil
	},
}

type statusOutput struct {
	Project string             `json:"project"`
	Title   string             `json:"title"`
	Status  string             `json:"status"`
	Error   string             `json:"error,omitempty"`
	Tasks   []taskStatusOutput `json:"tasks"`
}

type taskStatusOutput struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	Status    string   `json:"status"`
	BlockedBy []string `json:"blocked_by,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show a project's lifecycle state and task graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		project, err := rt.Store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return MapError(err)
		}
		tasks, err := rt.Store.GetProjectTasks(cmd.Context(), project.ID)
		if err != nil {
			return MapError(err)
		}

		if statusJSON {
			out := statusOutput{
				Project: project.ID,
				Title:   project.Title,
				Status:  string(project.Status),
				Error:   project.ErrorMessage(),
			}
			for _, t := range tasks {
				out.Tasks = append(out.Tasks, taskStatusOutput{
					ID:        t.ID,
					Title:     t.Title,
					Type:      string(t.TaskType),
					Status:    string(t.Status),
					BlockedBy: t.BlockedBy,
				})
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Printf("%s  [%s]\n", project.Title, project.Status)
		if msg := project.ErrorMessage(); msg != "" {
			fmt.Printf("error: %s\n", msg)
		}
		for _, t := range tasks {
			blocked := ""
			if len(t.BlockedBy) > 0 {
				blocked = fmt.Sprintf("  (blocked by %d)", len(t.BlockedBy))
			}
			fmt.Printf("  %-12s %-6s %s%s\n", t.Status, t.TaskType, t.Title, blocked)
		}
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Reconcile persisted state after a crash or restart",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		n, err := rt.Session.Recover(cmd.Context())
		if err != nil {
			return MapError(err)
		}
		fmt.Printf("Recovered %d project(s).\n", n)
		return nil
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List known agent profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		agents, err := rt.Store.ListAgents(cmd.Context())
		if err != nil {
			return MapError(err)
		}
		if len(agents) == 0 {
			fmt.Println("No agents yet. Agents are created when a plan recommends them.")
			return nil
		}
		for _, a := range agents {
			fmt.Printf("%s  %-24s %s  [%s]\n", a.ID, a.Name, a.Role, strings.Join(a.Specialties, ", "))
		}
		return nil
	},
}

func init() {
	startCmd.Flags().StringVar(&startResearch, "research", string(orchestration.ResearchStandard), "research depth: none, quick, standard, deep")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output in JSON format")

	RootCmd.AddCommand(startCmd)
	RootCmd.AddCommand(approveCmd)
	RootCmd.AddCommand(pauseCmd)
	RootCmd.AddCommand(resumeCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(recoverCmd)
	RootCmd.AddCommand(agentsCmd)
}
