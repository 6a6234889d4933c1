package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/no10ds/rapid-sdk-go/consumer"
	"github.com/no10ds/rapid-sdk-go/frame"
	"github.com/no10ds/rapid-sdk-go/types"
)

type queryOptions struct {
	selectColumns []string
	filter        string
	groupBy       []string
	aggregation   string
	orderBy       []string
	limit         string
	out           string
}

func newQueryCmd(a *app) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <domain> <dataset>",
		Short: "Query a dataset",
		Example: `  rapid query test rapid_sdk --select column_a,column_b --filter "column_b > 1" --order-by column_b:DESC --limit 10
  rapid query test rapid_sdk --out result.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			q, err := opts.query()
			if err != nil {
				return err
			}

			client, err := a.client(ctx)
			if err != nil {
				return err
			}
			c := consumer.New(client, consumer.WithLogger(a.logger))

			if opts.out != "" {
				if err := c.QueryToFile(ctx, args[0], args[1], q, opts.out); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.stdout, "Wrote %s\n", opts.out)
				return nil
			}

			f, err := c.Query(ctx, args[0], args[1], q)
			if err != nil {
				return err
			}

			return a.render(records(f), func(w io.Writer) {
				_, _ = fmt.Fprintln(w, strings.Join(f.Header(), "\t"))
				for i := 0; i < f.Rows(); i++ {
					_, _ = fmt.Fprintln(w, strings.Join(f.Row(i), "\t"))
				}
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.selectColumns, "select", nil, "Columns to return (comma separated)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Row filter expression")
	cmd.Flags().StringSliceVar(&opts.groupBy, "group-by", nil, "Columns to group by")
	cmd.Flags().StringVar(&opts.aggregation, "aggregation", "", "Aggregation conditions")
	cmd.Flags().StringSliceVar(&opts.orderBy, "order-by", nil, "Ordering as column or column:DESC")
	cmd.Flags().StringVar(&opts.limit, "limit", "", "Maximum number of rows")
	cmd.Flags().StringVar(&opts.out, "out", "", "Write the result as CSV to this file")

	return cmd
}

func (o *queryOptions) query() (types.Query, error) {
	q := types.Query{
		SelectColumns:         o.selectColumns,
		Filter:                o.filter,
		GroupByColumns:        o.groupBy,
		AggregationConditions: o.aggregation,
		Limit:                 o.limit,
	}

	for _, raw := range o.orderBy {
		column, dir, _ := strings.Cut(raw, ":")
		ob := types.OrderBy{Column: column}
		switch d := types.SortDirection(strings.ToUpper(dir)); d {
		case "":
		case types.SortAscending, types.SortDescending:
			ob.Direction = d
		default:
			return types.Query{}, fmt.Errorf("invalid sort direction %q in %q: use ASC or DESC", dir, raw)
		}
		q.OrderByColumns = append(q.OrderByColumns, ob)
	}

	return q, nil
}

// records converts f into one map per row for json and yaml output.
func records(f *frame.Frame) []map[string]string {
	header := f.Header()
	out := make([]map[string]string, f.Rows())
	for i := range out {
		row := f.Row(i)
		rec := make(map[string]string, len(header))
		for j, name := range header {
			rec[name] = row[j]
		}
		out[i] = rec
	}
	return out
}
