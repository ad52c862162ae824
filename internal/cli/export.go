package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/planner/internal/export"
	"github.com/mesh-intelligence/planner/pkg/types"
)

type exportFlags struct {
	xlsx string
	csv  string
}

func newExportCmd(a *app) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write both tables to a spreadsheet or to local CSV files",
		Example: "  planner export --xlsx wedding.xlsx\n" +
			"  planner export --csv backup/",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (f.xlsx == "") == (f.csv == "") {
				return errors.New("give exactly one of --xlsx or --csv")
			}
			sheets, err := a.sheets(cmd)
			if err != nil {
				return err
			}

			var written []string
			if f.xlsx != "" {
				if err := writeWorkbook(f.xlsx, sheets); err != nil {
					return sysErr(err)
				}
				written = []string{f.xlsx}
			} else {
				written, err = export.CSV(f.csv, sheets)
				if err != nil {
					return sysErr(err)
				}
			}

			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"written": written})
			}
			for _, p := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.xlsx, "xlsx", "", "write an Excel workbook with one sheet per table")
	cmd.Flags().StringVar(&f.csv, "csv", "", "write <table>.csv files into this directory")
	return cmd
}

// sheets loads every standard table in one session.
func (a *app) sheets(cmd *cobra.Command) ([]export.Sheet, error) {
	if err := a.attach(cmd); err != nil {
		return nil, err
	}
	defer a.detach()

	sheets := make([]export.Sheet, 0, len(types.StandardTableNames))
	for _, name := range types.StandardTableNames {
		c, err := a.table(cmd.Context(), name)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, export.Sheet{Name: name, Table: c.Table()})
	}
	return sheets, nil
}

func writeWorkbook(path string, sheets []export.Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Workbook(f, sheets); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
