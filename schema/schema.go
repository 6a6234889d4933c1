// Package schema models a dataset schema and sends it to rAPId.
package schema

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"

	"github.com/no10ds/rapid-sdk-go/api"
	"github.com/no10ds/rapid-sdk-go/rapiderr"
	"github.com/no10ds/rapid-sdk-go/types"
)

// Schema is dataset metadata plus its ordered columns.
type Schema struct {
	metadata types.SchemaMetadata
	columns  []types.Column
}

// Payload is the wire form sent to POST and PUT /schema.
type Payload struct {
	Metadata types.SchemaMetadata `json:"metadata"`
	Columns  []types.Column       `json:"columns"`
}

// New returns a schema over a copy of columns.
func New(metadata types.SchemaMetadata, columns []types.Column) *Schema {
	return &Schema{metadata: metadata, columns: slices.Clone(columns)}
}

// NewFromInputs normalises inputs with FormatColumns and returns a schema.
func NewFromInputs(metadata types.SchemaMetadata, inputs []types.ColumnInput) (*Schema, error) {
	cols, err := FormatColumns(inputs)
	if err != nil {
		return nil, err
	}

	return &Schema{metadata: metadata, columns: cols}, nil
}

// Metadata returns the schema metadata.
func (s *Schema) Metadata() types.SchemaMetadata {
	return s.metadata
}

// Columns returns a copy of the columns in order.
func (s *Schema) Columns() []types.Column {
	return slices.Clone(s.columns)
}

// SetColumns replaces the columns.
func (s *Schema) SetColumns(cols []types.Column) {
	s.columns = slices.Clone(cols)
}

// Payload returns the wire form of the schema.
func (s *Schema) Payload() Payload {
	cols := s.columns
	if cols == nil {
		cols = []types.Column{}
	}

	return Payload{Metadata: s.metadata, Columns: cols}
}

// AreColumnsTheSame reports whether other holds the same columns as s,
// ignoring order. Duplicates count.
func (s *Schema) AreColumnsTheSame(other []types.Column) bool {
	return SameColumns(s.columns, other)
}

// SameColumns compares two column lists as multisets.
func SameColumns(a, b []types.Column) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[types.ColumnKey]int, len(a))
	for _, c := range a {
		counts[c.Key()]++
	}
	for _, c := range b {
		k := c.Key()
		if counts[k] == 0 {
			return false
		}
		counts[k]--
	}

	return true
}

// ColumnDiff lists column names that differ between two column sets.
type ColumnDiff struct {
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether the diff found nothing.
func (d ColumnDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

func (d ColumnDiff) String() string {
	var parts []string
	if len(d.Added) > 0 {
		parts = append(parts, "added: "+strings.Join(d.Added, ", "))
	}
	if len(d.Removed) > 0 {
		parts = append(parts, "removed: "+strings.Join(d.Removed, ", "))
	}
	if len(d.Changed) > 0 {
		parts = append(parts, "changed: "+strings.Join(d.Changed, ", "))
	}
	if len(parts) == 0 {
		return "no changes"
	}

	return strings.Join(parts, "; ")
}

// DiffColumns compares proposed against current by column name. Names are
// reported in sorted order.
func DiffColumns(current, proposed []types.Column) ColumnDiff {
	cur := make(map[string]types.Column, len(current))
	for _, c := range current {
		cur[c.Name] = c
	}
	prop := make(map[string]types.Column, len(proposed))
	for _, c := range proposed {
		prop[c.Name] = c
	}

	var d ColumnDiff
	for name, p := range prop {
		c, ok := cur[name]
		switch {
		case !ok:
			d.Added = append(d.Added, name)
		case !c.Equal(p):
			d.Changed = append(d.Changed, name)
		}
	}
	for name := range cur {
		if _, ok := prop[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}

	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	slices.Sort(d.Changed)

	return d
}

// Create registers the schema. A 409 is reported as types.ResultAlreadyExists
// rather than an error.
func (s *Schema) Create(ctx context.Context, client *api.Client) (types.Result, error) {
	if err := s.validate(); err != nil {
		return types.ResultFailed, err
	}

	resp, err := client.Post(ctx, "/schema", s.Payload())
	if err != nil {
		return types.ResultFailed, fmt.Errorf("create schema: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return types.ResultSuccess, nil
	case http.StatusConflict:
		return types.ResultAlreadyExists, nil
	default:
		return types.ResultFailed, rapiderr.New(rapiderr.ErrSchemaCreateFailed, "Could not create schema", resp.StatusCode, resp.Body, resp.Data())
	}
}

// Update replaces the registered schema.
func (s *Schema) Update(ctx context.Context, client *api.Client) (types.Result, error) {
	if err := s.validate(); err != nil {
		return types.ResultFailed, err
	}

	resp, err := client.Put(ctx, "/schema", s.Payload())
	if err != nil {
		return types.ResultFailed, fmt.Errorf("update schema: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.ResultFailed, rapiderr.New(rapiderr.ErrSchemaUpdateFailed, "Could not update schema", resp.StatusCode, resp.Body, resp.Data())
	}

	return types.ResultSuccess, nil
}

func (s *Schema) validate() error {
	if missing := s.metadata.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", rapiderr.ErrInvalidMetadata, strings.Join(missing, ", "))
	}

	return nil
}

// FormatColumns normalises column inputs. Inputs must be all typed or all
// raw; mixing the two, or a raw mapping with missing or mistyped fields,
// fails with rapiderr.ErrSchemaInitialisation.
func FormatColumns(inputs []types.ColumnInput) ([]types.Column, error) {
	cols := make([]types.Column, 0, len(inputs))
	typed, raw := 0, 0

	for i, in := range inputs {
		switch {
		case in.Typed != nil && in.Raw == nil:
			typed++
			cols = append(cols, *in.Typed)
		case in.Raw != nil && in.Typed == nil:
			raw++
			c, err := columnFromMap(in.Raw)
			if err != nil {
				return nil, fmt.Errorf("%w: column %d: %v", rapiderr.ErrSchemaInitialisation, i, err)
			}
			cols = append(cols, c)
		default:
			return nil, fmt.Errorf("%w: column %d must set exactly one of typed or raw", rapiderr.ErrSchemaInitialisation, i)
		}
	}

	if typed > 0 && raw > 0 {
		return nil, fmt.Errorf("%w: columns must be all typed or all raw mappings", rapiderr.ErrSchemaInitialisation)
	}

	return cols, nil
}

func columnFromMap(m map[string]any) (types.Column, error) {
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return types.Column{}, fmt.Errorf("name must be a non-empty string")
	}
	dataType, ok := m["data_type"].(string)
	if !ok || dataType == "" {
		return types.Column{}, fmt.Errorf("%s: data_type must be a non-empty string", name)
	}

	c := types.NewColumn(name, dataType)

	if v, ok := m["partition_index"]; ok && v != nil {
		idx, ok := asInt(v)
		if !ok {
			return types.Column{}, fmt.Errorf("%s: partition_index must be an integer, got %T", name, v)
		}
		c = c.WithPartitionIndex(idx)
	}

	if v, ok := m["allow_null"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return types.Column{}, fmt.Errorf("%s: allow_null must be a bool, got %T", name, v)
		}
		c.AllowNull = b
	}

	if v, ok := m["format"]; ok && v != nil {
		f, ok := v.(string)
		if !ok {
			return types.Column{}, fmt.Errorf("%s: format must be a string, got %T", name, v)
		}
		c = c.WithFormat(f)
	}

	return c, nil
}

// asInt accepts Go integers and integral JSON numbers.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
