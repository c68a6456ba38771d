package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/lernio/studysync/internal/record"
	"github.com/lernio/studysync/internal/remote"
	"github.com/lernio/studysync/internal/store"
	"github.com/lernio/studysync/internal/ui"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage study goals",
	Long: `Create, list, and complete study goals in the local database.

Goals sync to the cloud on the next sync. Completion state set in the
cloud (e.g. from another device) wins over the local flag.`,
}

var goalDue string

var goalAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a study goal",
	Long: `Add a study goal to the local database.

The --due flag accepts natural language as well as dates:

  studysync goal add "Finish algebra chapter 4" --due "next friday"
  studysync goal add "Review flashcards" --due 2026-09-15`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		who := owner()
		if who == "" {
			fmt.Fprintf(os.Stderr, "Error: no owner configured (set owner in config or pass --owner)\n")
			os.Exit(1)
		}

		goal := &record.StudyGoal{
			ID:        uuid.NewString(),
			OwnerID:   who,
			Text:      strings.Join(args, " "),
			CreatedAt: time.Now().UTC(),
		}

		if goalDue != "" {
			due, err := parseDue(goalDue)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			goal.DueAt = &due
		}

		local, err := openLocal(newCLILogger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer local.Close()

		if err := local.PutGoal(cmd.Context(), goal); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Added goal %s\n", ui.RenderPass("✓"), ui.RenderAccent(goal.ID))
		if goal.DueAt != nil {
			fmt.Printf("   Due: %s\n", goal.DueAt.Format("2006-01-02 15:04"))
		}
	},
}

var goalListAll bool

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List study goals",
	Run: func(cmd *cobra.Command, args []string) {
		who := owner()
		if who == "" {
			fmt.Fprintf(os.Stderr, "Error: no owner configured (set owner in config or pass --owner)\n")
			os.Exit(1)
		}

		local, err := openLocal(newCLILogger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer local.Close()

		goals, err := local.ListGoals(cmd.Context(), who)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		shown := 0
		for _, g := range goals {
			if g.Completed && !goalListAll {
				continue
			}
			marker := "○"
			if g.Completed {
				marker = ui.RenderPass("●")
			}
			line := fmt.Sprintf("%s %s  %s", marker, ui.RenderAccent(shortID(g.ID)), g.Text)
			if g.DueAt != nil {
				line += "  " + ui.RenderMuted("due "+g.DueAt.Format("2006-01-02"))
			}
			fmt.Println(line)
			shown++
		}
		if shown == 0 {
			fmt.Println("No goals. Add one with 'studysync goal add'.")
		}
	},
}

var goalDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a study goal complete",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		who := owner()
		if who == "" {
			fmt.Fprintf(os.Stderr, "Error: no owner configured (set owner in config or pass --owner)\n")
			os.Exit(1)
		}

		local, err := openLocal(newCLILogger())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer local.Close()

		id, err := resolveGoalID(cmd, local, who, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := local.SetGoalCompleted(cmd.Context(), id, true); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Goal %s complete\n", ui.RenderPass("✓"), ui.RenderAccent(shortID(id)))

		// Completion follows the server, so push it there immediately when
		// possible. If this fails the flag reverts on the next sync until a
		// device pushes it successfully.
		rs, closeRemote, err := openRemote(newCLILogger())
		if err == nil {
			done := true
			if err := rs.UpdateStudyGoal(cmd.Context(), id, remote.GoalPatch{Completed: &done}); err != nil {
				fmt.Printf("%s Could not update the cloud copy: %v\n", ui.RenderWarn("⚠"), err)
			}
			if closeRemote != nil {
				_ = closeRemote()
			}
		}
	},
}

// parseDue parses a due date, trying natural language first.
func parseDue(input string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	if r, err := w.Parse(input, time.Now()); err == nil && r != nil {
		return r.Time, nil
	}

	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04", time.RFC3339} {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not understand due date %q", input)
}

// shortID abbreviates a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveGoalID expands an abbreviated id to the full one, requiring a
// unique prefix match among the owner's goals.
func resolveGoalID(cmd *cobra.Command, local *store.Store, who, prefix string) (string, error) {
	goals, err := local.ListGoals(cmd.Context(), who)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, g := range goals {
		if g.ID == prefix {
			return g.ID, nil
		}
		if strings.HasPrefix(g.ID, prefix) {
			matches = append(matches, g.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no goal matches %q", prefix)
	default:
		return "", fmt.Errorf("%q is ambiguous (%d goals match)", prefix, len(matches))
	}
}

func init() {
	goalAddCmd.Flags().StringVar(&goalDue, "due", "", "due date (natural language or YYYY-MM-DD)")
	goalListCmd.Flags().BoolVarP(&goalListAll, "all", "a", false, "include completed goals")
	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalDoneCmd)
	rootCmd.AddCommand(goalCmd)
}
