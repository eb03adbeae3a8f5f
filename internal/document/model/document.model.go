package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Document is one schemaless record of a collection, owned by a single user.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	OwnerID    string         `json:"owner_id"`
	Fields     map[string]any `json:"fields"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Query selects documents of one collection. Documents lacking the OrderBy
// field are left out of ordered results.
type Query struct {
	Collection string   `json:"collection"`
	Where      []Filter `json:"where,omitempty"`
	OrderBy    string   `json:"order_by,omitempty"`
	Desc       bool     `json:"desc,omitempty"`
}

type WriteOp string

const (
	OpSet    WriteOp = "set"
	OpUpdate WriteOp = "update"
	OpDelete WriteOp = "delete"
)

// Write is one step of an atomic batch. OpSet inserts a new document and
// may leave ID empty to have one assigned.
type Write struct {
	Op         WriteOp        `json:"op"`
	Collection string         `json:"collection"`
	ID         string         `json:"id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

type InsertRequest struct {
	Fields map[string]any `json:"fields"`
}

type InsertResponse struct {
	ID string `json:"id"`
}

type UpdateRequest struct {
	Fields map[string]any `json:"fields"`
}

type BatchRequest struct {
	Writes []Write `json:"writes"`
}

type BatchResponse struct {
	IDs []string `json:"ids"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Eq builds the single-owner filter used by every registry subscription.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

func (q Query) Matches(d Document) bool {
	if q.Collection != "" && d.Collection != q.Collection {
		return false
	}
	for _, f := range q.Where {
		v, ok := d.Fields[f.Field]
		if !ok || !equalValues(v, f.Value) {
			return false
		}
	}
	if q.OrderBy != "" {
		if _, ok := d.Fields[q.OrderBy]; !ok {
			return false
		}
	}
	return true
}

// Apply filters docs and sorts them per the query. The input is not modified.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	if q.OrderBy == "" {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
		if c == 0 {
			return out[i].ID < out[j].ID
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Values encodes the query as URL parameters: where=field==value, orderBy, desc.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("collection", q.Collection)
	for _, f := range q.Where {
		v.Add("where", f.Field+"=="+fmt.Sprint(f.Value))
	}
	if q.OrderBy != "" {
		v.Set("orderBy", q.OrderBy)
	}
	if q.Desc {
		v.Set("desc", "true")
	}
	return v
}

// ParseQuery is the inverse of Values. Filter values arrive as strings.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Collection: v.Get("collection"),
		OrderBy:    v.Get("orderBy"),
	}
	if raw := v.Get("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return Query{}, fmt.Errorf("invalid desc %q", raw)
		}
		q.Desc = desc
	}
	for _, w := range v["where"] {
		field, value, ok := strings.Cut(w, "==")
		if !ok || field == "" {
			return Query{}, fmt.Errorf("invalid filter %q", w)
		}
		q.Where = append(q.Where, Filter{Field: field, Value: value})
	}
	return q, nil
}

// FilterValue returns the value of the first equality filter on field.
func (q Query) FilterValue(field string) (any, bool) {
	for _, f := range q.Where {
		if f.Field == field {
			return f.Value, true
		}
	}
	return nil, false
}

func equalValues(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func compareValues(a, b any) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case aNum:
		// numbers sort before everything else
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
