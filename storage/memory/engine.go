package memory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// runPipeline interprets the pipeline operator subset the view layer emits:
// $match, $sort, $limit, $skip, $sample, $project, $unwind, $group, $facet
// and $count. Stages never mutate their input documents; every transforming
// stage builds fresh ones.
func runPipeline(docs []bson.M, pipeline []bson.D, sample func([]bson.M, int64) []bson.M) ([]bson.M, error) {
	var err error
	for i, stage := range pipeline {
		if len(stage) == 0 {
			return nil, fmt.Errorf("stage %d is empty", i+1)
		}
		op, arg := stage[0].Key, stage[0].Value

		switch op {
		case "$match":
			docs, err = applyMatch(docs, arg)
		case "$sort":
			docs, err = applySort(docs, arg)
		case "$limit":
			docs, err = applyHead(docs, arg, false)
		case "$skip":
			docs, err = applyHead(docs, arg, true)
		case "$sample":
			docs, err = applySample(docs, arg, sample)
		case "$project":
			docs, err = applyProject(docs, arg)
		case "$unwind":
			docs, err = applyUnwind(docs, arg)
		case "$group":
			docs, err = applyGroup(docs, arg)
		case "$facet":
			docs, err = applyFacet(docs, arg, sample)
		case "$count":
			docs, err = applyCount(docs, arg)
		default:
			return nil, fmt.Errorf("stage %d: unsupported operator %q", i+1, op)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i+1, op, err)
		}
	}
	return docs, nil
}

// --- $match ---

func applyMatch(docs []bson.M, arg any) ([]bson.M, error) {
	expr, ok := toDoc(arg)
	if !ok {
		return nil, fmt.Errorf("match expression must be a document, got %T", arg)
	}

	var out []bson.M
	for _, doc := range docs {
		matched, err := matchDocument(doc, expr)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, doc)
		}
	}
	return out, nil
}

func matchDocument(doc bson.M, expr bson.D) (bool, error) {
	for _, cond := range expr {
		val, present := resolvePath(doc, cond.Key)
		ok, err := matchValue(val, present, cond.Value)
		if err != nil {
			return false, fmt.Errorf("field %q: %w", cond.Key, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchValue(val any, present bool, cond any) (bool, error) {
	if opDoc, ok := toDoc(cond); ok && isOperatorDoc(opDoc) {
		for _, op := range opDoc {
			ok, err := matchOperator(val, present, op.Key, op.Value)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}

	// Plain value: equality, with array containment when the field is an array.
	return valueMatches(val, cond), nil
}

func matchOperator(val any, present bool, op string, arg any) (bool, error) {
	switch op {
	case "$in":
		list, ok := toList(arg)
		if !ok {
			return false, fmt.Errorf("$in needs an array, got %T", arg)
		}
		for _, candidate := range list {
			if valueMatches(val, candidate) {
				return true, nil
			}
		}
		return false, nil
	case "$nin":
		ok, err := matchOperator(val, present, "$in", arg)
		return !ok, err
	case "$not":
		inner, ok := toDoc(arg)
		if !ok {
			return false, fmt.Errorf("$not needs an operator document, got %T", arg)
		}
		for _, op := range inner {
			ok, err := matchOperator(val, present, op.Key, op.Value)
			if err != nil {
				return false, err
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	case "$ne":
		return !valueMatches(val, arg), nil
	case "$exists":
		want, _ := arg.(bool)
		return present == want, nil
	case "$gt", "$gte", "$lt", "$lte":
		cmp, comparable := compareValues(val, arg)
		if !comparable {
			return false, nil
		}
		switch op {
		case "$gt":
			return cmp > 0, nil
		case "$gte":
			return cmp >= 0, nil
		case "$lt":
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	default:
		return false, fmt.Errorf("unsupported match operator %q", op)
	}
}

// valueMatches implements equality with array-containment semantics: a
// query value matches an array field when it equals the whole array or any
// of its elements.
func valueMatches(val, want any) bool {
	if valuesEqual(val, want) {
		return true
	}
	if elems, ok := toList(val); ok {
		for _, e := range elems {
			if valuesEqual(e, want) {
				return true
			}
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if cmp, comparable := compareValues(a, b); comparable {
		return cmp == 0
	}
	return false
}

func isOperatorDoc(doc bson.D) bool {
	return len(doc) > 0 && strings.HasPrefix(doc[0].Key, "$")
}

// --- $sort ---

func applySort(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := toDoc(arg)
	if !ok {
		return nil, fmt.Errorf("sort spec must be a document, got %T", arg)
	}

	out := make([]bson.M, len(docs))
	copy(out, docs)

	sort.SliceStable(out, func(i, j int) bool {
		for _, key := range spec {
			dir := int64(1)
			if n, ok := toInt64(key.Value); ok {
				dir = n
			}
			a, _ := resolvePath(out[i], key.Key)
			b, _ := resolvePath(out[j], key.Key)
			cmp, _ := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if dir < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return out, nil
}

// --- $limit / $skip ---

func applyHead(docs []bson.M, arg any, skip bool) ([]bson.M, error) {
	n, ok := toInt64(arg)
	if !ok || n < 0 {
		return nil, fmt.Errorf("needs a non-negative integer, got %v", arg)
	}
	if n > int64(len(docs)) {
		n = int64(len(docs))
	}
	if skip {
		return docs[n:], nil
	}
	return docs[:n], nil
}

// --- $sample ---

func applySample(docs []bson.M, arg any, sample func([]bson.M, int64) []bson.M) ([]bson.M, error) {
	spec, ok := toDoc(arg)
	if !ok {
		return nil, fmt.Errorf("sample spec must be a document, got %T", arg)
	}
	size, ok := toInt64(spec.Map()["size"])
	if !ok || size < 0 {
		return nil, fmt.Errorf("sample size must be a non-negative integer")
	}
	return sample(docs, size), nil
}

// --- $project ---

func applyProject(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := toDoc(arg)
	if !ok {
		return nil, fmt.Errorf("projection must be a document, got %T", arg)
	}

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		projected := bson.M{}
		if id, present := doc["_id"]; present {
			projected["_id"] = id
		}
		for _, field := range spec {
			val, present, err := evalExpr(doc, field.Value)
			if err != nil {
				return nil, err
			}
			if present {
				projected[field.Key] = val
			}
		}
		out = append(out, projected)
	}
	return out, nil
}

// --- $unwind ---

func applyUnwind(docs []bson.M, arg any) ([]bson.M, error) {
	path := ""
	preserve := false

	switch spec := arg.(type) {
	case string:
		path = spec
	default:
		doc, ok := toDoc(arg)
		if !ok {
			return nil, fmt.Errorf("unwind spec must be a path or document, got %T", arg)
		}
		m := doc.Map()
		path, _ = m["path"].(string)
		preserve, _ = m["preserveNullAndEmptyArrays"].(bool)
	}
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("unwind path must start with $, got %q", path)
	}
	field := strings.TrimPrefix(path, "$")

	var out []bson.M
	for _, doc := range docs {
		val, present := resolvePath(doc, field)
		elems, isArray := toList(val)

		switch {
		case isArray && len(elems) > 0:
			for _, e := range elems {
				out = append(out, withField(doc, field, e))
			}
		case isArray && preserve:
			// Empty arrays unwind to a document without the field.
			out = append(out, withoutField(doc, field))
		case !isArray && present && val != nil:
			// Non-array values pass through unchanged.
			out = append(out, doc)
		case preserve:
			out = append(out, doc)
		}
	}
	return out, nil
}

func withField(doc bson.M, field string, val any) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	out[field] = val
	return out
}

func withoutField(doc bson.M, field string) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if k != field {
			out[k] = v
		}
	}
	return out
}

// --- $group ---

func applyGroup(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := toDoc(arg)
	if !ok {
		return nil, fmt.Errorf("group spec must be a document, got %T", arg)
	}

	var idExpr any
	var accums bson.D
	for _, field := range spec {
		if field.Key == "_id" {
			idExpr = field.Value
			continue
		}
		accums = append(accums, field)
	}

	type bucket struct {
		id   any
		accs map[string]*accumulator
	}
	var order []string
	buckets := map[string]*bucket{}

	for _, doc := range docs {
		id, _, err := evalExpr(doc, idExpr)
		if err != nil {
			return nil, err
		}
		key, err := groupKey(id)
		if err != nil {
			return nil, err
		}

		b, seen := buckets[key]
		if !seen {
			b = &bucket{id: id, accs: map[string]*accumulator{}}
			for _, acc := range accums {
				a, err := newAccumulator(acc.Value)
				if err != nil {
					return nil, fmt.Errorf("accumulator %q: %w", acc.Key, err)
				}
				b.accs[acc.Key] = a
			}
			buckets[key] = b
			order = append(order, key)
		}

		for _, acc := range accums {
			if err := b.accs[acc.Key].add(doc); err != nil {
				return nil, fmt.Errorf("accumulator %q: %w", acc.Key, err)
			}
		}
	}

	out := make([]bson.M, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		result := bson.M{"_id": b.id}
		for _, acc := range accums {
			result[acc.Key] = b.accs[acc.Key].value()
		}
		out = append(out, result)
	}
	return out, nil
}

type accumulator struct {
	op   string
	expr any

	sum  int64
	set  []any
	seen map[string]struct{}
	list []any
}

func newAccumulator(spec any) (*accumulator, error) {
	doc, ok := toDoc(spec)
	if !ok || len(doc) != 1 {
		return nil, fmt.Errorf("must be a single-operator document, got %v", spec)
	}
	op := doc[0].Key
	switch op {
	case "$sum", "$addToSet", "$push":
	default:
		return nil, fmt.Errorf("unsupported accumulator %q", op)
	}
	return &accumulator{op: op, expr: doc[0].Value, seen: map[string]struct{}{}}, nil
}

func (a *accumulator) add(doc bson.M) error {
	val, present, err := evalExpr(doc, a.expr)
	if err != nil {
		return err
	}

	switch a.op {
	case "$sum":
		if n, ok := toInt64(val); ok {
			a.sum += n
		}
	case "$addToSet":
		if !present {
			return nil
		}
		key, err := groupKey(val)
		if err != nil {
			return err
		}
		if _, dup := a.seen[key]; dup {
			return nil
		}
		a.seen[key] = struct{}{}
		a.set = append(a.set, val)
	case "$push":
		if present {
			a.list = append(a.list, val)
		}
	}
	return nil
}

func (a *accumulator) value() any {
	switch a.op {
	case "$sum":
		return a.sum
	case "$addToSet":
		return append([]any{}, a.set...)
	default:
		return append([]any{}, a.list...)
	}
}

// --- $facet ---

func applyFacet(docs []bson.M, arg any, sample func([]bson.M, int64) []bson.M) ([]bson.M, error) {
	spec, ok := toDoc(arg)
	if !ok {
		return nil, fmt.Errorf("facet spec must be a document, got %T", arg)
	}

	result := bson.M{}
	for _, field := range spec {
		sub, err := toPipeline(field.Value)
		if err != nil {
			return nil, fmt.Errorf("facet %q: %w", field.Key, err)
		}
		subResults, err := runPipeline(docs, sub, sample)
		if err != nil {
			return nil, fmt.Errorf("facet %q: %w", field.Key, err)
		}
		vals := make([]any, len(subResults))
		for i, d := range subResults {
			vals[i] = d
		}
		result[field.Key] = vals
	}
	return []bson.M{result}, nil
}

func toPipeline(v any) ([]bson.D, error) {
	list, ok := toList(v)
	if !ok {
		return nil, fmt.Errorf("sub-pipeline must be an array, got %T", v)
	}
	out := make([]bson.D, 0, len(list))
	for _, e := range list {
		doc, ok := e.(bson.D)
		if !ok {
			m, isM := e.(bson.M)
			if !isM {
				return nil, fmt.Errorf("sub-pipeline stage must be a document, got %T", e)
			}
			doc, _ = toDoc(m)
		}
		out = append(out, doc)
	}
	return out, nil
}

// --- $count ---

func applyCount(docs []bson.M, arg any) ([]bson.M, error) {
	field, ok := arg.(string)
	if !ok || field == "" {
		return nil, fmt.Errorf("count needs a non-empty field name")
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return []bson.M{{field: int64(len(docs))}}, nil
}

// --- expressions ---

// evalExpr evaluates an aggregation expression against one document: field
// references ("$a.b"), $objectToArray, literal documents of expressions, and
// plain literals. The present flag mirrors whether a referenced field exists.
func evalExpr(doc bson.M, expr any) (any, bool, error) {
	switch e := expr.(type) {
	case string:
		if strings.HasPrefix(e, "$") {
			val, present := resolvePath(doc, strings.TrimPrefix(e, "$"))
			return val, present, nil
		}
		return e, true, nil
	case nil:
		return nil, true, nil
	}

	if d, ok := toDoc(expr); ok {
		if isOperatorDoc(d) {
			if len(d) != 1 || d[0].Key != "$objectToArray" {
				return nil, false, fmt.Errorf("unsupported expression operator %q", d[0].Key)
			}
			operand, present, err := evalExpr(doc, d[0].Value)
			if err != nil || !present {
				return nil, false, err
			}
			return objectToArray(operand)
		}

		out := bson.M{}
		for _, field := range d {
			val, present, err := evalExpr(doc, field.Value)
			if err != nil {
				return nil, false, err
			}
			if present {
				out[field.Key] = val
			}
		}
		return out, true, nil
	}

	return expr, true, nil
}

// objectToArray converts a document value into its [{k, v}] entry list, with
// keys sorted for deterministic output when the source lost field order.
func objectToArray(v any) (any, bool, error) {
	if v == nil {
		return nil, false, nil
	}

	switch obj := v.(type) {
	case bson.D:
		out := make([]any, 0, len(obj))
		for _, e := range obj {
			out = append(out, bson.M{"k": e.Key, "v": e.Value})
		}
		return out, true, nil
	case bson.M:
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(obj))
		for _, k := range keys {
			out = append(out, bson.M{"k": k, "v": obj[k]})
		}
		return out, true, nil
	}
	return nil, false, fmt.Errorf("$objectToArray needs a document, got %T", v)
}

// resolvePath walks a dotted path through nested documents and arrays;
// numeric segments index into arrays.
func resolvePath(doc bson.M, path string) (any, bool) {
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case bson.M:
			val, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = val
		case bson.D:
			val, ok := node.Map()[segment]
			if !ok {
				return nil, false
			}
			current = val
		default:
			list, isList := toList(current)
			if !isList {
				return nil, false
			}
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(list) {
				return nil, false
			}
			current = list[idx]
		}
	}
	return current, true
}

// groupKey renders a value into a canonical string usable as a map key.
func groupKey(v any) (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "k", Value: normalize(v)}}, true, false)
	if err != nil {
		return "", fmt.Errorf("ungroupable key %v: %w", v, err)
	}
	return string(data), nil
}

// normalize rewrites bson.M documents into key-sorted bson.D so equal values
// always render identically.
func normalize(v any) any {
	switch val := v.(type) {
	case bson.M:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(bson.D, 0, len(val))
		for _, k := range keys {
			out = append(out, bson.E{Key: k, Value: normalize(val[k])})
		}
		return out
	case bson.D:
		out := make(bson.D, 0, len(val))
		for _, e := range val {
			out = append(out, bson.E{Key: e.Key, Value: normalize(e.Value)})
		}
		return out
	}
	if list, ok := toList(v); ok {
		out := make(bson.A, 0, len(list))
		for _, e := range list {
			out = append(out, normalize(e))
		}
		return out
	}
	return v
}

// compareValues orders two values the way the engine sorts: nil first, then
// numbers, strings, ObjectIDs, booleans. Values of different classes are
// ordered by class; the comparable flag is false only when a class is
// unknown.
func compareValues(a, b any) (int, bool) {
	ca, okA := valueClass(a)
	cb, okB := valueClass(b)
	if !okA || !okB {
		return 0, false
	}
	if ca != cb {
		if ca < cb {
			return -1, true
		}
		return 1, true
	}

	switch ca {
	case classNull:
		return 0, true
	case classNumber:
		fa, _ := toFloat64(a)
		fb, _ := toFloat64(b)
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	case classString:
		return strings.Compare(a.(string), b.(string)), true
	case classObjectID:
		return strings.Compare(a.(primitive.ObjectID).Hex(), b.(primitive.ObjectID).Hex()), true
	default:
		ba := a.(bool)
		bb := b.(bool)
		switch {
		case ba == bb:
			return 0, true
		case !ba:
			return -1, true
		}
		return 1, true
	}
}

const (
	classNull = iota
	classNumber
	classString
	classObjectID
	classBool
)

func valueClass(v any) (int, bool) {
	switch v.(type) {
	case nil:
		return classNull, true
	case int, int32, int64, float64:
		return classNumber, true
	case string:
		return classString, true
	case primitive.ObjectID:
		return classObjectID, true
	case bool:
		return classBool, true
	}
	return 0, false
}

// --- coercions ---

func toDoc(v any) (bson.D, bool) {
	switch doc := v.(type) {
	case bson.D:
		return doc, true
	case bson.M:
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(bson.D, 0, len(doc))
		for _, k := range keys {
			out = append(out, bson.E{Key: k, Value: doc[k]})
		}
		return out, true
	}
	return nil, false
}

func toList(v any) ([]any, bool) {
	switch list := v.(type) {
	case bson.A:
		return []any(list), true
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []bson.D:
		out := make([]any, len(list))
		for i, d := range list {
			out[i] = d
		}
		return out, true
	case []primitive.ObjectID:
		out := make([]any, len(list))
		for i, id := range list {
			out[i] = id
		}
		return out, true
	}
	return nil, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
