package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planner/internal/paths"
	"github.com/mesh-intelligence/planner/pkg/types"
)

// tableNoun names a table's records in command output.
type tableNoun struct {
	table    string
	singular string
}

var (
	guestNoun = tableNoun{table: types.GuestsTable, singular: "guest"}
	taskNoun  = tableNoun{table: types.TasksTable, singular: "task"}
)

// schema returns the configured schema of a table without attaching.
func (a *app) schema(name string) (types.Schema, error) {
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return types.Schema{}, sysErr(fmt.Errorf("resolve config dir: %w", err))
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return types.Schema{}, err
	}
	return cfg.Schema(name)
}

// writeSaved reports a record written by a mutation.
func (a *app) writeSaved(cmd *cobra.Command, t *types.Table, key, verb string, noun tableNoun) error {
	rec, ok := t.Find(key)
	if !ok {
		return fmt.Errorf("%s %q not found after save", noun.singular, key)
	}
	if a.flags.jsonMode {
		return writeJSON(cmd.OutOrStdout(), rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %q\n", verb, noun.singular, key)
	return nil
}

func newUpdateCmd(a *app, noun tableNoun) *cobra.Command {
	return &cobra.Command{
		Use:   "update <key> <field=value>...",
		Short: fmt.Sprintf("Change fields of a %s", noun.singular),
		Long: fmt.Sprintf("Change fields of a %s. Setting the key field renames the record.\n"+
			"Values are parsed by field type, e.g. companions=2 or cost=150.50.", noun.singular),
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.schema(noun.table)
			if err != nil {
				return err
			}
			fields, err := parseAssignments(schema, args[1:])
			if err != nil {
				return err
			}
			t, err := a.mutate(cmd, noun.table, types.UpdateMutation(args[0], fields))
			if err != nil {
				return err
			}
			key := strings.TrimSpace(args[0])
			if renamed, ok := fields[schema.Key].(string); ok {
				key = strings.TrimSpace(renamed)
			}
			return a.writeSaved(cmd, t, key, "Updated", noun)
		},
	}
}

func newDeleteCmd(a *app, noun tableNoun) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>...",
		Aliases: []string{"rm"},
		Short:   fmt.Sprintf("Remove %ss", noun.singular),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms := make([]types.Mutation, len(args))
			for i, key := range args {
				ms[i] = types.DeleteMutation(key)
			}
			m := ms[0]
			if len(ms) > 1 {
				m = types.Batch(ms...)
			}
			t, err := a.mutate(cmd, noun.table, m)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"deleted": args, "remaining": t.Len()})
			}
			for _, key := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %q\n", noun.singular, strings.TrimSpace(key))
			}
			return nil
		},
	}
}

// newListCmd lists a table, optionally filtered on one enum field.
func newListCmd(a *app, noun tableNoun, filterField string) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   fmt.Sprintf("Show the %s", noun.table),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.snapshot(cmd, noun.table)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed(filterField) {
				t, err = filterRecords(t, types.FieldEquals(filterField, filter))
				if err != nil {
					return err
				}
			}
			return writeRecords(cmd.OutOrStdout(), t, a.flags.jsonMode)
		},
	}
	cmd.Flags().StringVar(&filter, filterField, "", fmt.Sprintf("only show %ss with this %s", noun.singular, filterField))
	return cmd
}
