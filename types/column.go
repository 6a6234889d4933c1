package types

import (
	"encoding/json"
	"fmt"
)

// Column describes one dataset field.
type Column struct {
	Name           string  `json:"name"`
	DataType       string  `json:"data_type"`
	PartitionIndex *int    `json:"partition_index"`
	AllowNull      bool    `json:"allow_null"`
	Format         *string `json:"format"`
}

// NewColumn returns a nullable, unpartitioned column.
func NewColumn(name, dataType string) Column {
	return Column{Name: name, DataType: dataType, AllowNull: true}
}

// WithPartitionIndex returns a copy of c partitioned at index i.
func (c Column) WithPartitionIndex(i int) Column {
	c.PartitionIndex = &i
	return c
}

// WithFormat returns a copy of c with the given format string.
func (c Column) WithFormat(format string) Column {
	c.Format = &format
	return c
}

// Equal reports field-by-field equality.
func (c Column) Equal(o Column) bool {
	return c.Key() == o.Key()
}

// ColumnKey is a comparable form of Column.
type ColumnKey struct {
	Name           string
	DataType       string
	Partitioned    bool
	PartitionIndex int
	AllowNull      bool
	HasFormat      bool
	Format         string
}

// Key returns the comparable form of c.
func (c Column) Key() ColumnKey {
	k := ColumnKey{Name: c.Name, DataType: c.DataType, AllowNull: c.AllowNull}
	if c.PartitionIndex != nil {
		k.Partitioned = true
		k.PartitionIndex = *c.PartitionIndex
	}
	if c.Format != nil {
		k.HasFormat = true
		k.Format = *c.Format
	}

	return k
}

// UnmarshalJSON validates a server column at the decoding boundary.
// name and data_type are required; allow_null defaults to true.
func (c *Column) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name           *string `json:"name"`
		DataType       *string `json:"data_type"`
		PartitionIndex *int    `json:"partition_index"`
		AllowNull      *bool   `json:"allow_null"`
		Format         *string `json:"format"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode column: %w", err)
	}

	if raw.Name == nil || *raw.Name == "" {
		return fmt.Errorf("decode column: missing name")
	}
	if raw.DataType == nil || *raw.DataType == "" {
		return fmt.Errorf("decode column %q: missing data_type", *raw.Name)
	}

	*c = Column{
		Name:           *raw.Name,
		DataType:       *raw.DataType,
		PartitionIndex: raw.PartitionIndex,
		AllowNull:      true,
		Format:         raw.Format,
	}
	if raw.AllowNull != nil {
		c.AllowNull = *raw.AllowNull
	}

	return nil
}

// ColumnInput is either a typed Column or a raw mapping as returned by the
// server. Exactly one of the fields is set.
type ColumnInput struct {
	Typed *Column
	Raw   map[string]any
}

// TypedColumns wraps typed columns as inputs.
func TypedColumns(cols ...Column) []ColumnInput {
	in := make([]ColumnInput, len(cols))
	for i := range cols {
		c := cols[i]
		in[i] = ColumnInput{Typed: &c}
	}

	return in
}

// RawColumns wraps raw mappings as inputs.
func RawColumns(maps ...map[string]any) []ColumnInput {
	in := make([]ColumnInput, len(maps))
	for i, m := range maps {
		in[i] = ColumnInput{Raw: m}
	}

	return in
}

// Owner records dataset ownership.
type Owner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
