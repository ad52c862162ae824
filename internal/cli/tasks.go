package cli

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planner/pkg/types"
)

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Manage the preparations checklist",
	}
	cmd.AddCommand(newTaskAddCmd(a))
	cmd.AddCommand(newUpdateCmd(a, taskNoun))
	cmd.AddCommand(newDeleteCmd(a, taskNoun))
	cmd.AddCommand(newListCmd(a, taskNoun, types.TaskStatus))
	cmd.AddCommand(newSeedCmd(a))
	cmd.AddCommand(newBudgetCmd(a))
	return cmd
}

type taskAddFlags struct {
	status      string
	cost        float64
	notes       string
	interactive bool
}

func newTaskAddCmd(a *app) *cobra.Command {
	var f taskAddFlags
	cmd := &cobra.Command{
		Use:   "add <item>",
		Short: "Add a checklist item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := types.Record{}
			if len(args) == 1 {
				rec[types.TaskItem] = args[0]
			}
			flags := cmd.Flags()
			if flags.Changed("status") {
				rec[types.TaskStatus] = f.status
			}
			if flags.Changed("cost") {
				rec[types.TaskCost] = f.cost
			}
			if flags.Changed("notes") {
				rec[types.TaskNotes] = f.notes
			}

			if f.interactive {
				schema, err := a.schema(types.TasksTable)
				if err != nil {
					return err
				}
				full := schema.NewRecord()
				maps.Copy(full, rec)
				if err := taskForm(cmd, schema, full); err != nil {
					return err
				}
				rec = full
			} else if len(args) == 0 {
				return errors.New("item required (or use --interactive)")
			}

			t, err := a.mutate(cmd, types.TasksTable, types.InsertMutation(rec))
			if err != nil {
				return err
			}
			key := strings.TrimSpace(rec.String(types.TaskItem))
			return a.writeSaved(cmd, t, key, "Added", taskNoun)
		},
	}
	cmd.Flags().StringVar(&f.status, "status", "", "status (default: the first configured status)")
	cmd.Flags().Float64Var(&f.cost, "cost", 0, "cost")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "fill in the item with a form")
	return cmd
}

// missingDefaults returns the default items not yet in t.
func missingDefaults(t *types.Table) []string {
	var missing []string
	for _, item := range types.DefaultTaskItems {
		if _, ok := t.Find(item); !ok {
			missing = append(missing, item)
		}
	}
	return missing
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add the standard preparation items that are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.snapshot(cmd, types.TasksTable)
			if err != nil {
				return err
			}
			missing := missingDefaults(current)
			if len(missing) == 0 {
				if a.flags.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"added": []string{}})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to seed")
				return nil
			}

			ms := make([]types.Mutation, len(missing))
			for i, item := range missing {
				ms[i] = types.InsertMutation(types.Record{types.TaskItem: item})
			}
			if _, err := a.mutate(cmd, types.TasksTable, types.Batch(ms...)); err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"added": missing})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d items\n", len(missing))
			return nil
		},
	}
}

// budget is the summary printed by tasks budget.
type budget struct {
	Total    float64            `json:"total"`
	ByStatus map[string]float64 `json:"by_status"`
	Counts   map[string]int     `json:"counts"`
}

func summarizeTasks(t *types.Table) budget {
	f, _ := t.Schema().Field(types.TaskStatus)
	b := budget{
		Total:    types.TotalCost(t),
		ByStatus: make(map[string]float64, len(f.Options)),
		Counts:   types.CountByOption(t, types.TaskStatus),
	}
	for _, o := range f.Options {
		b.ByStatus[o] = types.Sum(t, types.TaskCost, types.FieldEquals(types.TaskStatus, o))
	}
	if b.Counts[types.UnmatchedOption] > 0 {
		b.ByStatus[types.UnmatchedOption] = types.Sum(t, types.TaskCost, func(r types.Record) bool {
			_, ok := f.OptionIndex(r[types.TaskStatus])
			return !ok
		})
	}
	return b
}

func newBudgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Sum task costs, overall and per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.snapshot(cmd, types.TasksTable)
			if err != nil {
				return err
			}
			b := summarizeTasks(t)
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), b)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Total: %.2f\n", b.Total)
			f, _ := t.Schema().Field(types.TaskStatus)
			labels := append([]string(nil), f.Options...)
			if b.Counts[types.UnmatchedOption] > 0 {
				labels = append(labels, types.UnmatchedOption)
			}
			for _, o := range labels {
				fmt.Fprintf(w, "  %-12s %3d items  %10.2f\n", o, b.Counts[o], b.ByStatus[o])
			}
			return nil
		},
	}
}
