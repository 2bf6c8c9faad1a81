package domain

// Expansion is the result of query expansion. Queries is never empty and
// Queries[0] is always the original query. Degraded marks that the
// language model could not contribute variants and the set is the
// identity fallback.
type Expansion struct {
	Queries  []string
	Degraded bool
}

// IdentityExpansion returns the degraded single-query fallback.
func IdentityExpansion(query string) Expansion {
	return Expansion{Queries: []string{query}, Degraded: true}
}

// NewExpansion builds an expansion from the original query plus variants.
func NewExpansion(query string, variants []string) Expansion {
	queries := make([]string, 0, len(variants)+1)
	queries = append(queries, query)
	queries = append(queries, variants...)
	return Expansion{Queries: queries}
}
