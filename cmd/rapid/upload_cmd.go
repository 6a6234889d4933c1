package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/no10ds/rapid-sdk-go/producer"
	"github.com/no10ds/rapid-sdk-go/types"
)

func newUploadCmd(a *app) *cobra.Command {
	var noWait bool

	cmd := &cobra.Command{
		Use:   "upload <domain> <dataset> <csv|s3://bucket/key>",
		Short: "Upload a CSV to an existing dataset",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := a.loadFrame(ctx, args[2])
			if err != nil {
				return err
			}

			client, err := a.client(ctx)
			if err != nil {
				return err
			}

			res, err := client.UploadDataframe(ctx, args[0], args[1], f, !noWait)
			if err != nil {
				return err
			}

			out := map[string]string{"job_id": res.JobID, "status": res.Status}
			return a.render(out, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, "JOB ID\tSTATUS")
				_, _ = fmt.Fprintf(w, "%s\t%s\n", res.JobID, orDash(res.Status))
			})
		},
	}

	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return the job id without waiting for ingestion")

	return cmd
}

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Work with dataset schemas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate <sensitivity> <domain> <dataset> <csv|s3://bucket/key>",
		Short: "Ask the server to infer a schema for a CSV",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sensitivity, err := types.ParseSensitivity(strings.ToUpper(args[0]))
			if err != nil {
				return err
			}

			f, err := a.loadFrame(ctx, args[3])
			if err != nil {
				return err
			}

			client, err := a.client(ctx)
			if err != nil {
				return err
			}

			generated, err := client.GenerateSchema(ctx, f, args[1], args[2], sensitivity)
			if err != nil {
				return err
			}

			return a.render(generated, func(w io.Writer) { printColumns(w, generated.Columns) })
		},
	})

	return cmd
}

func printColumns(w io.Writer, cols []types.Column) {
	_, _ = fmt.Fprintln(w, "NAME\tDATA TYPE\tPARTITION\tALLOW NULL\tFORMAT")
	for _, c := range cols {
		partition := "-"
		if c.PartitionIndex != nil {
			partition = strconv.Itoa(*c.PartitionIndex)
		}
		format := "-"
		if c.Format != nil {
			format = *c.Format
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", c.Name, c.DataType, partition, c.AllowNull, format)
	}
}

type uploadAndCreateOptions struct {
	sensitivity     string
	owners          []string
	upgradeSchema   bool
	version         int
	updateBehaviour string
	tags            map[string]string
	keyOnlyTags     []string
}

func newUploadAndCreateCmd(a *app) *cobra.Command {
	opts := &uploadAndCreateOptions{}

	cmd := &cobra.Command{
		Use:   "upload-and-create <domain> <dataset> <csv|s3://bucket/key>",
		Short: "Register the inferred schema if needed, then upload",
		Long: `Infer a schema from the CSV, register it (an existing schema is fine) and
upload the data, waiting for ingestion. With --upgrade-schema a schema
mismatch on upload updates the registered schema to the inferred columns;
the upload is not retried afterwards.`,
		Example: `  rapid upload-and-create test rapid_sdk data.csv --sensitivity PUBLIC --owner "Jane Doe:jane@example.gov.uk"`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			metadata, err := opts.metadata(args[0], args[1])
			if err != nil {
				return err
			}

			f, err := a.loadFrame(ctx, args[2])
			if err != nil {
				return err
			}

			client, err := a.client(ctx)
			if err != nil {
				return err
			}

			out, err := producer.New(client, producer.WithLogger(a.logger)).
				UploadAndCreateDataframe(ctx, metadata, f, opts.upgradeSchema)
			if err != nil {
				return err
			}

			v := outcomeView(out)
			return a.render(v, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, "SCHEMA\tJOB ID\tUPLOAD\tSCHEMA UPDATE")
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Create, orDash(v.JobID), orDash(v.Status), orDash(v.Update))
			})
		},
	}

	cmd.Flags().StringVar(&opts.sensitivity, "sensitivity", "", "Dataset sensitivity (PUBLIC, PRIVATE, PROTECTED)")
	cmd.Flags().StringArrayVar(&opts.owners, "owner", nil, `Dataset owner as "name:email" (repeatable)`)
	cmd.Flags().BoolVar(&opts.upgradeSchema, "upgrade-schema", false, "Update the schema when the upload does not match it")
	cmd.Flags().IntVar(&opts.version, "version", 0, "Schema version")
	cmd.Flags().StringVar(&opts.updateBehaviour, "update-behaviour", "", "APPEND or OVERWRITE")
	cmd.Flags().StringToStringVar(&opts.tags, "tag", nil, "Key-value tag as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&opts.keyOnlyTags, "key-only-tag", nil, "Key-only tag (repeatable)")
	_ = cmd.MarkFlagRequired("sensitivity")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func (o *uploadAndCreateOptions) metadata(domain, dataset string) (types.SchemaMetadata, error) {
	sensitivity, err := types.ParseSensitivity(strings.ToUpper(o.sensitivity))
	if err != nil {
		return types.SchemaMetadata{}, err
	}

	owners := make([]types.Owner, 0, len(o.owners))
	for _, raw := range o.owners {
		name, email, ok := strings.Cut(raw, ":")
		name, email = strings.TrimSpace(name), strings.TrimSpace(email)
		if !ok || name == "" || email == "" {
			return types.SchemaMetadata{}, fmt.Errorf("invalid owner %q: want name:email", raw)
		}
		owners = append(owners, types.Owner{Name: name, Email: email})
	}

	md := types.NewSchemaMetadata(domain, dataset, sensitivity, owners...)
	md.Version = o.version
	md.KeyValueTags = o.tags
	md.KeyOnlyTags = o.keyOnlyTags

	switch b := types.UpdateBehaviour(strings.ToUpper(o.updateBehaviour)); b {
	case "":
	case types.UpdateBehaviourAppend, types.UpdateBehaviourOverwrite:
		md.UpdateBehaviour = b
	default:
		return types.SchemaMetadata{}, fmt.Errorf("unknown update behaviour %q: use APPEND or OVERWRITE", o.updateBehaviour)
	}

	return md, nil
}

type outcome struct {
	Create string `json:"schema"`
	JobID  string `json:"job_id,omitempty"`
	Status string `json:"upload_status,omitempty"`
	Update string `json:"schema_update,omitempty"`
}

func outcomeView(o *producer.Outcome) outcome {
	v := outcome{Create: o.Create.String()}
	if o.Upload != nil {
		v.JobID = o.Upload.JobID
		v.Status = o.Upload.Status
	}
	if o.SchemaUpdated {
		v.Update = o.Update.String()
	}
	return v
}
