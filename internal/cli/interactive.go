package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mesh-intelligence/planner/pkg/types"
)

var errNotTerminal = errors.New("--interactive needs a terminal on stdin")

// isTerminal reports whether stdin is a terminal. Tests replace it.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// runForm runs a form on the command's streams. An aborted form is
// reported as a caller error.
func runForm(cmd *cobra.Command, form *huh.Form) error {
	if !isTerminal() {
		return errNotTerminal
	}
	err := form.WithInput(cmd.InOrStdin()).WithOutput(cmd.ErrOrStderr()).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("canceled")
	}
	return err
}

func requiredText(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func wholeNumber(s string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return errors.New("enter a whole number, 0 or more")
	}
	return nil
}

func amount(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || d < 0 {
		return errors.New("enter an amount, 0 or more")
	}
	return nil
}

// guestForm asks for every guest field, starting from rec.
func guestForm(cmd *cobra.Command, schema types.Schema, rec types.Record) error {
	name := rec.String(types.GuestName)
	companions := strconv.FormatInt(rec.Int(types.GuestCompanions), 10)
	relation := rec.String(types.GuestRelation)
	comments := rec.String(types.GuestComments)
	rsvp := rec.String(types.GuestRSVP)

	rsvpField, _ := schema.Field(types.GuestRSVP)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&name).Validate(requiredText("name")),
			huh.NewInput().Title("Companions").Value(&companions).Validate(wholeNumber),
			huh.NewInput().Title("Relation").Value(&relation),
			huh.NewText().Title("Comments").Value(&comments),
			huh.NewSelect[string]().Title("RSVP").Options(huh.NewOptions(rsvpField.Options...)...).Value(&rsvp),
		),
	)
	if err := runForm(cmd, form); err != nil {
		return err
	}

	n, _ := strconv.ParseInt(strings.TrimSpace(companions), 10, 64)
	rec[types.GuestName] = name
	rec[types.GuestCompanions] = n
	rec[types.GuestRelation] = relation
	rec[types.GuestComments] = comments
	rec[types.GuestRSVP] = rsvp
	return nil
}

// taskForm asks for every task field, starting from rec.
func taskForm(cmd *cobra.Command, schema types.Schema, rec types.Record) error {
	item := rec.String(types.TaskItem)
	status := rec.String(types.TaskStatus)
	cost := ""
	if c := rec.Float(types.TaskCost); c != 0 {
		cost = strconv.FormatFloat(c, 'f', -1, 64)
	}
	notes := rec.String(types.TaskNotes)

	statusField, _ := schema.Field(types.TaskStatus)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Item").Value(&item).Validate(requiredText("item")),
			huh.NewSelect[string]().Title("Status").Options(huh.NewOptions(statusField.Options...)...).Value(&status),
			huh.NewInput().Title("Cost").Value(&cost).Validate(amount),
			huh.NewText().Title("Notes").Value(&notes),
		),
	)
	if err := runForm(cmd, form); err != nil {
		return err
	}

	d, _ := strconv.ParseFloat(strings.TrimSpace(cost), 64)
	rec[types.TaskItem] = item
	rec[types.TaskStatus] = status
	rec[types.TaskCost] = d
	rec[types.TaskNotes] = notes
	return nil
}
