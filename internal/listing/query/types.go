// internal/listing/query/types.go
package query

// Filter is a single query clause. The closed set of implementations below
// covers every clause shape the engine emits; each renders itself to the
// document store's JSON body form.
type Filter interface {
	Clause() map[string]interface{}
}

// Sort is a single sort criterion.
type Sort interface {
	Clause() map[string]interface{}
}

// ==========================
// 1. Filters
// ==========================

// MatchFilter matches an analyzed text field.
type MatchFilter struct {
	Field string
	Value interface{}
}

func (f MatchFilter) Clause() map[string]interface{} {
	return map[string]interface{}{
		"match": map[string]interface{}{f.Field: f.Value},
	}
}

// TermFilter matches a keyword field exactly.
type TermFilter struct {
	Field string
	Value interface{}
}

func (f TermFilter) Clause() map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{f.Field: f.Value},
	}
}

// TermsFilter matches any of a set of exact values.
type TermsFilter struct {
	Field  string
	Values []int64
}

func (f TermsFilter) Clause() map[string]interface{} {
	return map[string]interface{}{
		"terms": map[string]interface{}{f.Field: f.Values},
	}
}

// GeoDistanceFilter restricts to documents within a radius of a point.
type GeoDistanceFilter struct {
	Field    string
	Distance string
	Lat      float64
	Lon      float64
}

func (f GeoDistanceFilter) Clause() map[string]interface{} {
	return map[string]interface{}{
		"geo_distance": map[string]interface{}{
			"distance": f.Distance,
			f.Field: map[string]interface{}{
				"lat": f.Lat,
				"lon": f.Lon,
			},
		},
	}
}

// OrFilter matches when at least one child filter matches.
type OrFilter struct {
	Filters []Filter
}

func (f OrFilter) Clause() map[string]interface{} {
	should := make([]map[string]interface{}, 0, len(f.Filters))
	for _, child := range f.Filters {
		should = append(should, child.Clause())
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"should":               should,
			"minimum_should_match": 1,
		},
	}
}

// ==========================
// 2. Sorts
// ==========================

// FieldSort sorts on a document field.
type FieldSort struct {
	Field        string
	Order        string
	Missing      interface{}
	UnmappedType string
}

func (s FieldSort) Clause() map[string]interface{} {
	spec := map[string]interface{}{"order": s.Order}
	if s.Missing != nil {
		spec["missing"] = s.Missing
	}
	if s.UnmappedType != "" {
		spec["unmapped_type"] = s.UnmappedType
	}
	return map[string]interface{}{s.Field: spec}
}

// ScriptSort sorts on a computed painless expression.
type ScriptSort struct {
	Source string
	Params map[string]interface{}
	Order  string
}

func (s ScriptSort) Clause() map[string]interface{} {
	script := map[string]interface{}{
		"source": s.Source,
		"lang":   "painless",
	}
	if len(s.Params) > 0 {
		script["params"] = s.Params
	}
	return map[string]interface{}{
		"_script": map[string]interface{}{
			"type":   "number",
			"script": script,
			"order":  s.Order,
		},
	}
}

// GeoDistanceSort sorts by distance from a point.
type GeoDistanceSort struct {
	Field string
	Lat   float64
	Lon   float64
	Order string
	Unit  string
}

func (s GeoDistanceSort) Clause() map[string]interface{} {
	return map[string]interface{}{
		"_geo_distance": map[string]interface{}{
			s.Field: map[string]interface{}{
				"lat": s.Lat,
				"lon": s.Lon,
			},
			"order": s.Order,
			"unit":  s.Unit,
		},
	}
}

func clauses(filters []Filter) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(filters))
	for _, f := range filters {
		out = append(out, f.Clause())
	}
	return out
}

func sortClauses(sorts []Sort) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(sorts))
	for _, s := range sorts {
		out = append(out, s.Clause())
	}
	return out
}
