// Package query turns untrusted request parameters into a bounded MongoDB
// query specification: filter, sort, projection, skip and limit.
//
// A Builder is used once per request:
//
//	spec, err := query.New(params).
//		Filter().
//		Sort().
//		LimitFields().
//		Paginate(ctx, db.CountTours)
//
// Stage errors are sticky: the first failure is kept and returned by Paginate.
package query

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/lealre/natours-backend/internal/apperrors"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

var reservedKeys = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

// comparisonOperators is the only set of store operators a client may reach.
var comparisonOperators = map[string]string{
	"gt":  "$gt",
	"gte": "$gte",
	"lt":  "$lt",
	"lte": "$lte",
}

var fieldNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// decimalRegex accepts plain decimal notation only, so hex floats and
// Inf/NaN spellings stay strings.
var decimalRegex = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// identifierFields hold ObjectID hex strings. Their values are never coerced.
var identifierFields = map[string]struct{}{
	"_id":    {},
	"tourId": {},
	"userId": {},
	"guides": {},
}

// Params is the parameter bag. Values are either a string or, for keys written
// as field[op]=value, a map of op to string.
type Params map[string]any

// Spec is the built description of a fetch. It is owned by the request that
// built it and not modified after Paginate returns it.
type Spec struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Skip       int64
	Limit      int64
	Page       int
	TotalPages int
	TotalCount int64
}

// Includes reports whether documents fetched with s carry field.
func (s Spec) Includes(field string) bool {
	if len(s.Projection) == 0 {
		return true
	}
	if value, ok := s.Projection[field]; ok {
		return value != 0
	}

	for key, value := range s.Projection {
		if key != "_id" && value != 0 {
			// inclusion projection without field
			return false
		}
	}
	return true
}

// CountFunc counts the documents matching filter.
type CountFunc func(ctx context.Context, filter bson.M) (int64, error)

type Builder struct {
	params Params
	base   bson.M
	spec   Spec
	err    error
}

/*
ParamsFromValues converts URL query values into a Params bag.

  - "duration=5" becomes {"duration": "5"}
  - "price[gte]=100" becomes {"price": {"gte": "100"}}
  - repeated keys keep the last value
  - deeper nesting, unbalanced brackets or a field used both as a scalar and
    with operators are invalid requests
*/
func ParamsFromValues(values url.Values) (Params, error) {
	params := make(Params, len(values))

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		value := vals[len(vals)-1]

		field, op, nested, err := splitKey(key)
		if err != nil {
			return nil, err
		}

		existing, exists := params[field]
		if !nested {
			if exists {
				return nil, apperrors.Newf(apperrors.InvalidRequest, "conflicting filters on field %q", field)
			}
			params[field] = value
			continue
		}

		ops, ok := existing.(map[string]string)
		if exists && !ok {
			return nil, apperrors.Newf(apperrors.InvalidRequest, "conflicting filters on field %q", field)
		}
		if !exists {
			ops = map[string]string{}
			params[field] = ops
		}
		ops[op] = value
	}

	return params, nil
}

func splitKey(key string) (field, op string, nested bool, err error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		if strings.ContainsRune(key, ']') {
			return "", "", false, malformedKey(key)
		}
		return key, "", false, nil
	}

	if open == 0 || !strings.HasSuffix(key, "]") {
		return "", "", false, malformedKey(key)
	}

	field = key[:open]
	op = key[open+1 : len(key)-1]
	if op == "" || strings.ContainsAny(op, "[]") || strings.ContainsRune(field, ']') {
		return "", "", false, malformedKey(key)
	}

	return field, op, true, nil
}

func malformedKey(key string) error {
	return apperrors.Newf(apperrors.InvalidRequest, "malformed query parameter %q", key)
}

func New(params Params) *Builder {
	if params == nil {
		params = Params{}
	}
	return &Builder{params: params}
}

// Where adds trusted conditions (route parameters, never client input) that
// are always part of the filter and override client filters on the same key.
func (b *Builder) Where(filter bson.M) *Builder {
	if b.base == nil {
		b.base = bson.M{}
	}
	for key, value := range filter {
		b.base[key] = value
	}
	return b
}

// Filter builds the filter predicate from every non-reserved parameter.
func (b *Builder) Filter() *Builder {
	if b.err != nil {
		return b
	}

	filter := bson.M{}
	for key, raw := range b.params {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		if err := validateField(key); err != nil {
			b.err = err
			return b
		}

		switch value := raw.(type) {
		case string:
			filter[key] = coerceField(key, value)
		case map[string]string:
			condition := bson.M{}
			for op, operand := range value {
				storeOp, ok := comparisonOperators[op]
				if !ok {
					b.err = apperrors.Newf(apperrors.InvalidRequest, "unsupported operator %q on field %q", op, key)
					return b
				}
				condition[storeOp] = coerceField(key, operand)
			}
			filter[key] = condition
		default:
			b.err = apperrors.Newf(apperrors.InvalidRequest, "invalid filter on field %q", key)
			return b
		}
	}

	b.spec.Filter = filter
	return b
}

// Sort parses "sort=-price,duration" into an ordered sort specification.
func (b *Builder) Sort() *Builder {
	if b.err != nil {
		return b
	}

	fields, present, err := b.listParam("sort")
	if err != nil || !present {
		b.err = err
		return b
	}

	sort := bson.D{}
	seen := map[string]bool{}
	for _, field := range fields {
		direction := 1
		if strings.HasPrefix(field, "-") {
			direction = -1
			field = field[1:]
		}
		if err := validateField(field); err != nil {
			b.err = err
			return b
		}
		if seen[field] {
			continue
		}
		seen[field] = true
		sort = append(sort, bson.E{Key: field, Value: direction})
	}

	b.spec.Sort = sort
	return b
}

// LimitFields parses "fields=name,price" into a projection. A list where
// every field starts with "-" excludes those fields instead.
func (b *Builder) LimitFields() *Builder {
	if b.err != nil {
		return b
	}

	fields, present, err := b.listParam("fields")
	if err != nil || !present {
		b.err = err
		return b
	}

	projection := bson.M{}
	included, excluded := 0, 0
	for _, field := range fields {
		value := 1
		if strings.HasPrefix(field, "-") {
			value = 0
			field = field[1:]
		}
		if err := validateField(field); err != nil {
			b.err = err
			return b
		}
		projection[field] = value

		// _id may be excluded from an inclusion projection
		if field == "_id" {
			continue
		}
		if value == 1 {
			included++
		} else {
			excluded++
		}
	}

	if included > 0 && excluded > 0 {
		b.err = apperrors.New(apperrors.InvalidRequest, "fields cannot mix included and excluded fields")
		return b
	}

	b.spec.Projection = projection
	return b
}

/*
Paginate resolves page and limit, counts the matching documents and returns
the finished Spec.

  - page defaults to 1 and limit to 10; malformed or non-positive values fall back to those
  - limit is capped at MaxLimit
  - page is clamped to [1, ceil(total/limit)]; with no matches it is page 1 with skip 0
*/
func (b *Builder) Paginate(ctx context.Context, count CountFunc) (Spec, error) {
	if b.err != nil {
		return Spec{}, b.err
	}

	page := intParam(b.params["page"], DefaultPage)
	limit := intParam(b.params["limit"], DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}

	filter := b.filter()
	total, err := count(ctx, filter)
	if err != nil {
		return Spec{}, fmt.Errorf("count matching documents: %w", err)
	}

	lastPage := int((total + int64(limit) - 1) / int64(limit))
	if page > lastPage {
		page = lastPage
	}
	if page < 1 {
		page = 1
	}

	spec := b.spec
	spec.Filter = filter
	spec.Page = page
	spec.Limit = int64(limit)
	spec.Skip = int64(page-1) * int64(limit)
	spec.TotalCount = total
	spec.TotalPages = lastPage

	return spec, nil
}

func (b *Builder) filter() bson.M {
	filter := bson.M{}
	for key, value := range b.spec.Filter {
		filter[key] = value
	}
	for key, value := range b.base {
		filter[key] = value
	}
	return filter
}

func (b *Builder) listParam(key string) ([]string, bool, error) {
	raw, ok := b.params[key]
	if !ok {
		return nil, false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return nil, false, apperrors.Newf(apperrors.InvalidRequest, "%s must be a comma separated list", key)
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items, len(items) > 0, nil
}

func validateField(field string) error {
	if !fieldNameRegex.MatchString(field) {
		return apperrors.Newf(apperrors.InvalidRequest, "invalid field name %q", field)
	}
	return nil
}

func intParam(raw any, fallback int) int {
	value, ok := raw.(string)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func coerceField(field, raw string) any {
	if _, ok := identifierFields[field]; ok {
		return raw
	}
	return coerce(raw)
}

// coerce gives query-string scalars the type they most likely have in the store.
func coerce(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if decimalRegex.MatchString(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsInf(f, 0) {
			return f
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
