package types

// SortDirection orders query results.
type SortDirection string

const (
	SortAscending  SortDirection = "ASC"
	SortDescending SortDirection = "DESC"
)

// OrderBy is one ordering clause. An empty Direction means ascending.
type OrderBy struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// Query is the body of a dataset query. Unset fields are left to the server.
type Query struct {
	SelectColumns         []string  `json:"select_columns,omitempty"`
	Filter                string    `json:"filter,omitempty"`
	GroupByColumns        []string  `json:"group_by_columns,omitempty"`
	AggregationConditions string    `json:"aggregation_conditions,omitempty"`
	OrderByColumns        []OrderBy `json:"order_by_columns,omitempty"`
	Limit                 string    `json:"limit,omitempty"`
}

// Normalized returns a copy with default sort directions filled in.
func (q Query) Normalized() Query {
	if len(q.OrderByColumns) == 0 {
		return q
	}

	order := make([]OrderBy, len(q.OrderByColumns))
	for i, o := range q.OrderByColumns {
		if o.Direction == "" {
			o.Direction = SortAscending
		}
		order[i] = o
	}
	q.OrderByColumns = order

	return q
}
