// Package consumer reads datasets back out of rAPId.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"strconv"

	"github.com/no10ds/rapid-sdk-go/api"
	"github.com/no10ds/rapid-sdk-go/frame"
	"github.com/no10ds/rapid-sdk-go/rapiderr"
	"github.com/no10ds/rapid-sdk-go/types"
)

// Consumer runs queries against datasets.
type Consumer struct {
	client *api.Client
	logger *slog.Logger
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) { c.logger = l }
}

// New returns a Consumer using client.
func New(client *api.Client, opts ...Option) *Consumer {
	c := &Consumer{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "consumer")

	return c
}

// Dataset is one entry of the dataset listing.
type Dataset struct {
	Domain  string         `json:"domain"`
	Dataset string         `json:"dataset"`
	Version int            `json:"version,omitempty"`
	Tags    map[string]any `json:"tags,omitempty"`
}

// ListDatasets returns the datasets visible to the client.
func (c *Consumer) ListDatasets(ctx context.Context) ([]Dataset, error) {
	raw, err := c.client.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}

	var datasets []Dataset
	if err := json.Unmarshal(raw, &datasets); err != nil {
		return nil, rapiderr.New(rapiderr.ErrListDatasetsFailed, fmt.Sprintf("failed to decode dataset list: %v", err), http.StatusOK, raw, nil)
	}

	return datasets, nil
}

// Query runs q against the dataset and returns the rows as a frame.
//
// Rows arrive keyed by their string index and are ordered numerically.
// Column order follows q.SelectColumns when set, otherwise the column names
// are sorted.
func (c *Consumer) Query(ctx context.Context, domain, dataset string, q types.Query) (*frame.Frame, error) {
	path := fmt.Sprintf("/datasets/%s/%s/query", url.PathEscape(domain), url.PathEscape(dataset))

	resp, err := c.client.Post(ctx, path, q.Normalized())
	if err != nil {
		return nil, fmt.Errorf("query %s/%s: %w", domain, dataset, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rapiderr.New(rapiderr.ErrQueryFailed, "Could not query dataset", resp.StatusCode, resp.Body, resp.Data())
	}

	var rows map[string]map[string]any
	if err := resp.Decode(&rows); err != nil {
		return nil, rapiderr.New(rapiderr.ErrQueryFailed, err.Error(), resp.StatusCode, resp.Body, nil)
	}

	f, err := rowsToFrame(rows, q.SelectColumns)
	if err != nil {
		return nil, rapiderr.New(rapiderr.ErrQueryFailed, err.Error(), resp.StatusCode, resp.Body, nil)
	}

	c.logger.Info("query complete", "domain", domain, "dataset", dataset, "rows", f.Rows())

	return f, nil
}

// QueryToFile runs q and writes the result as CSV to outputPath.
func (c *Consumer) QueryToFile(ctx context.Context, domain, dataset string, q types.Query, outputPath string) error {
	f, err := c.Query(ctx, domain, dataset, q)
	if err != nil {
		return err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if err := f.WriteCSV(out); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	return out.Close()
}

func rowsToFrame(rows map[string]map[string]any, selected []string) (*frame.Frame, error) {
	type indexed struct {
		idx int
		row map[string]any
	}

	ordered := make([]indexed, 0, len(rows))
	for key, row := range rows {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("row index %q is not an integer", key)
		}
		ordered = append(ordered, indexed{idx: idx, row: row})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].idx < ordered[j].idx })

	header := slices.Clone(selected)
	if len(header) == 0 {
		seen := make(map[string]bool)
		for _, r := range ordered {
			for name := range r.row {
				if !seen[name] {
					seen[name] = true
					header = append(header, name)
				}
			}
		}
		slices.Sort(header)
	}

	if len(header) == 0 {
		return frame.Empty(), nil
	}

	f, err := frame.New(header)
	if err != nil {
		return nil, err
	}

	for _, r := range ordered {
		cells := make([]string, len(header))
		for i, name := range header {
			cells[i] = cell(r.row[name])
		}
		if err := f.Append(cells...); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
