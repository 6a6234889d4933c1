package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/no10ds/rapid-sdk-go/api"
	"github.com/no10ds/rapid-sdk-go/consumer"
)

func newDatasetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Inspect datasets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List datasets visible to the client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client(cmd.Context())
			if err != nil {
				return err
			}

			datasets, err := consumer.New(client, consumer.WithLogger(a.logger)).ListDatasets(cmd.Context())
			if err != nil {
				return err
			}

			return a.render(datasets, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, "DOMAIN\tDATASET\tVERSION")
				for _, d := range datasets {
					v := "-"
					if d.Version > 0 {
						v = strconv.Itoa(d.Version)
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", d.Domain, d.Dataset, v)
				}
			})
		},
	})

	return cmd
}

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect asynchronous jobs",
	}

	cmd.AddCommand(newJobsStatusCmd(a))
	cmd.AddCommand(newJobsWaitCmd(a))

	return cmd
}

func newJobsStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current progress of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd.Context())
			if err != nil {
				return err
			}

			progress, err := client.FetchJobProgress(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return a.render(progress, func(w io.Writer) { printProgress(w, progress) })
		},
	}
}

func newJobsWaitCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Poll a job until it succeeds or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			client, err := a.client(ctx)
			if err != nil {
				return err
			}

			if err := client.WaitForJobOutcome(ctx, args[0], interval); err != nil {
				return err
			}

			result := map[string]string{"job_id": args[0], "status": api.UploadSuccess}
			return a.render(result, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Job %s succeeded\n", args[0])
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", api.DefaultPollInterval, "Pause between status checks")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits indefinitely)")

	return cmd
}

func printProgress(w io.Writer, progress api.JobProgress) {
	keys := make([]string, 0, len(progress))
	for k := range progress {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	_, _ = fmt.Fprintln(w, "FIELD\tVALUE")
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s\t%v\n", k, progress[k])
	}
}
