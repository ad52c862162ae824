package cli

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planner/pkg/types"
)

func newGuestsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "guests",
		Aliases: []string{"guest"},
		Short:   "Manage the guest list",
	}
	cmd.AddCommand(newGuestAddCmd(a))
	cmd.AddCommand(newUpdateCmd(a, guestNoun))
	cmd.AddCommand(newDeleteCmd(a, guestNoun))
	cmd.AddCommand(newListCmd(a, guestNoun, types.GuestRSVP))
	cmd.AddCommand(newHeadcountCmd(a))
	return cmd
}

type guestAddFlags struct {
	companions  int64
	relation    string
	comments    string
	rsvp        string
	interactive bool
}

func newGuestAddCmd(a *app) *cobra.Command {
	var f guestAddFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a guest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := types.Record{}
			if len(args) == 1 {
				rec[types.GuestName] = args[0]
			}
			flags := cmd.Flags()
			if flags.Changed("companions") {
				rec[types.GuestCompanions] = f.companions
			}
			if flags.Changed("relation") {
				rec[types.GuestRelation] = f.relation
			}
			if flags.Changed("comments") {
				rec[types.GuestComments] = f.comments
			}
			if flags.Changed("rsvp") {
				rec[types.GuestRSVP] = f.rsvp
			}

			if f.interactive {
				schema, err := a.schema(types.GuestsTable)
				if err != nil {
					return err
				}
				full := schema.NewRecord()
				maps.Copy(full, rec)
				if err := guestForm(cmd, schema, full); err != nil {
					return err
				}
				rec = full
			} else if len(args) == 0 {
				return errors.New("guest name required (or use --interactive)")
			}

			t, err := a.mutate(cmd, types.GuestsTable, types.InsertMutation(rec))
			if err != nil {
				return err
			}
			key := strings.TrimSpace(rec.String(types.GuestName))
			return a.writeSaved(cmd, t, key, "Added", guestNoun)
		},
	}
	cmd.Flags().Int64Var(&f.companions, "companions", 0, "number of companions")
	cmd.Flags().StringVar(&f.relation, "relation", "", "how the guest is related")
	cmd.Flags().StringVar(&f.comments, "comments", "", "free-form comments")
	cmd.Flags().StringVar(&f.rsvp, "rsvp", "", "Yes, No or Pending (default Pending)")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "fill in the guest with a form")
	return cmd
}

// headcount is the summary printed by guests headcount.
type headcount struct {
	Guests    int            `json:"guests"`
	Confirmed int64          `json:"confirmed"`
	Invited   int64          `json:"invited"`
	ByRSVP    map[string]int `json:"by_rsvp"`
	Unmatched []string       `json:"unmatched,omitempty"`
}

func summarizeGuests(t *types.Table) headcount {
	return headcount{
		Guests:    t.Len(),
		Confirmed: types.ConfirmedHeadcount(t),
		Invited:   types.InvitedHeadcount(t),
		ByRSVP:    types.CountByOption(t, types.GuestRSVP),
		Unmatched: t.Unmatched(types.GuestRSVP),
	}
}

func newHeadcountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "headcount",
		Short: "Count confirmed and invited people, companions included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.snapshot(cmd, types.GuestsTable)
			if err != nil {
				return err
			}
			h := summarizeGuests(t)
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), h)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Confirmed: %d\n", h.Confirmed)
			fmt.Fprintf(w, "Invited:   %d\n", h.Invited)
			fmt.Fprintf(w, "Guests:    %d\n", h.Guests)
			schema := t.Schema()
			f, _ := schema.Field(types.GuestRSVP)
			for _, o := range f.Options {
				fmt.Fprintf(w, "  %-10s %d\n", o, h.ByRSVP[o])
			}
			if n := h.ByRSVP[types.UnmatchedOption]; n > 0 {
				fmt.Fprintf(w, "  %-10s %d (%s)\n", types.UnmatchedOption, n, strings.Join(h.Unmatched, ", "))
			}
			return nil
		},
	}
}
