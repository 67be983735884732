package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [CATALOG [SCHEMA [TABLE]]]",
	Short: "Browse Unity Catalog",
	Long: `List catalogs, the schemas of a catalog, the tables of a schema, or the
columns of a table.`,
	Args: cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(nil)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.API.Timeout)
		defer cancel()

		roots, mock, err := a.catalog.LoadRoots(ctx)
		if err != nil {
			return err
		}
		if mock {
			fmt.Fprintln(os.Stderr, "Note: showing the demo catalog; no workspace credentials are configured.")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)

		switch len(args) {
		case 0:
			t.AppendHeader(table.Row{"Catalog", "Comment"})
			for _, c := range roots {
				t.AppendRow(table.Row{c.Name, c.Comment})
			}

		case 1:
			schemas, err := a.catalog.LoadSchemas(ctx, args[0])
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Schema", "Comment"})
			for _, s := range schemas {
				t.AppendRow(table.Row{s.Name, s.Comment})
			}

		case 2:
			tables, err := a.catalog.LoadTables(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Table", "Type", "Format"})
			for _, tbl := range tables {
				t.AppendRow(table.Row{tbl.Name, tbl.TableType, tbl.DataSourceFormat})
			}

		case 3:
			d, err := a.catalog.SelectTable(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Printf("Table:   %s\n", d.FullName)
			if d.Comment != "" {
				fmt.Printf("Comment: %s\n", d.Comment)
			}
			fmt.Printf("Type:    %s\n", d.TableType)
			fmt.Printf("Format:  %s\n", d.DataSourceFormat)
			fmt.Printf("Owner:   %s\n\n", d.Owner)
			t.AppendHeader(table.Row{"Column", "Type", "Nullable"})
			for _, c := range d.Columns {
				t.AppendRow(table.Row{c.Name, c.TypeName, c.Nullable})
			}
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
