package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thetechidea/beepdatasources/pkg/compression"
	"github.com/thetechidea/beepdatasources/pkg/datasource"
	"github.com/thetechidea/beepdatasources/pkg/export"
	jsonpool "github.com/thetechidea/beepdatasources/pkg/json"
	"github.com/thetechidea/beepdatasources/pkg/rdbms/dialect"
)

func writeJSON(w io.Writer, v interface{}) error {
	data, err := jsonpool.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List dialects and their registered drivers",
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DIALECT\tDRIVER\tDESCRIPTION")
			for _, d := range dialect.All() {
				drv, err := datasource.Lookup(d)
				if err != nil {
					fmt.Fprintf(tw, "%s\t-\tset --driver to a registered database/sql driver\n", d)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d, drv.Name, drv.Description)
			}
			_ = tw.Flush()
		},
	}
}

func (a *app) newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List tables and views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ds *datasource.RDBMSDataSource) error {
				names, err := ds.GetEntitiesNames(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}
}

func (a *app) newDescribeCmd() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "describe <entity>",
		Short: "Show the columns of an entity or query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ds *datasource.RDBMSDataSource) error {
				if query != "" {
					s, err := ds.GetQueryStructure(ctx, args[0], query)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), s)
				}
				s, err := ds.GetEntityStructure(ctx, args[0], true)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), s)
			})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Describe the result of this SELECT instead of a table")
	return cmd
}

func (a *app) newQueryCmd() *cobra.Command {
	var (
		filters []string
		page    int
		size    int
		baseSQL string
	)
	cmd := &cobra.Command{
		Use:   "query [entity]",
		Short: "Read one page of an entity or SELECT",
		Long: `Read one page of filtered rows together with the total row count.

Example:
  beepdata query orders -f "status = shipped" -f "total > 100" --page 2 --size 50
  beepdata query --sql "SELECT o.id, c.name FROM orders o JOIN customers c ON c.id = o.customer_id" -f "c.name = Acme"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := ParseFilters(filters)
			if err != nil {
				return err
			}
			if (len(args) == 0) == (baseSQL == "") {
				return fmt.Errorf("give either an entity or --sql")
			}
			return a.run(cmd, func(ctx context.Context, ds *datasource.RDBMSDataSource) error {
				if baseSQL != "" {
					res, err := ds.QueryPaged(ctx, baseSQL, parsed, page, size)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), res)
				}
				res, err := ds.GetEntityPaged(ctx, args[0], parsed, page, size)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, `Filter as "field op value", repeatable`)
	cmd.Flags().IntVar(&page, "page", 1, "Page number, 1-based")
	cmd.Flags().IntVar(&size, "size", 0, "Page size (0 uses the configured default)")
	cmd.Flags().StringVar(&baseSQL, "sql", "", "Page this SELECT instead of an entity")
	return cmd
}

func (a *app) newSQLCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sql <statement>",
		Short: "Run a statement and print rows as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, ds *datasource.RDBMSDataSource) error {
				rows, err := ds.RunQuery(ctx, args[0], limit)
				if err != nil {
					return err
				}
				data, err := jsonpool.MarshalRecords(rows, jsonpool.FormatLines)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows to print (0 prints all)")
	return cmd
}

func (a *app) newExportCmd() *cobra.Command {
	var (
		filters []string
		format  string
		codec   string
		output  string
		batch   int
	)
	cmd := &cobra.Command{
		Use:   "export <entity>",
		Short: "Stream an entity to a file as JSON or Avro",
		Long: `Stream the filtered rows of an entity to a file or stdout.

Example:
  beepdata export orders -f "status = shipped" --format avro --compression snappy -o orders.avro
  beepdata export orders --format jsonl --compression zstd -o orders.jsonl.zst`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := ParseFilters(filters)
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			alg, err := compression.ParseAlgorithm(codec)
			if err != nil {
				return err
			}

			return a.run(cmd, func(ctx context.Context, ds *datasource.RDBMSDataSource) (err error) {
				structure, err := ds.GetEntityStructure(ctx, args[0], false)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					file, ferr := os.Create(output)
					if ferr != nil {
						return fmt.Errorf("failed to create %s: %w", output, ferr)
					}
					defer func() {
						if cerr := file.Close(); cerr != nil && err == nil {
							err = cerr
						}
					}()
					w = file
				}

				n, err := export.Write(w, ds.GetEntity(ctx, args[0], parsed), export.Options{
					Format:      f,
					Compression: alg,
					Structure:   structure,
					Name:        args[0],
					BatchSize:   batch,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, `Filter as "field op value", repeatable`)
	cmd.Flags().StringVar(&format, "format", "jsonl", "Output format: jsonl, json or avro")
	cmd.Flags().StringVar(&codec, "compression", "none", "Compression: none, gzip, zstd, lz4, snappy, s2, deflate")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().IntVar(&batch, "batch-size", 500, "Records per Avro block")
	return cmd
}
