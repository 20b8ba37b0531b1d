package scyllastore

// Predicate is one engine-level restriction on a column.
type Predicate struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value"`
	// Unchecked marks an operator outside the known set that is forwarded as-is.
	Unchecked bool `json:"unchecked,omitempty"`
}

// Query is a validated lookup against a single table, ready for a session to execute.
type Query struct {
	Table          string       `json:"table"`
	Predicates     []Predicate  `json:"predicates"`
	GroupBy        []string     `json:"groupBy,omitempty"`
	Limit          int          `json:"limit,omitempty"`
	Projections    []Projection `json:"projections,omitempty"`
	AllowFiltering bool         `json:"allowFiltering"`
}

// PredicatesFor returns the predicates restricting the given field.
func (q *Query) PredicatesFor(field string) []Predicate {
	if q == nil {
		return nil
	}
	var out []Predicate
	for _, p := range q.Predicates {
		if p.Field == field {
			out = append(out, p)
		}
	}
	return out
}

// Fields returns the distinct fields referenced by predicates, group-by and projections
// in first-seen order.
func (q *Query) Fields() []string {
	if q == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(f string) {
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	for _, p := range q.Predicates {
		add(p.Field)
	}
	for _, g := range q.GroupBy {
		add(g)
	}
	for _, p := range q.Projections {
		add(p.Field)
	}
	return out
}
