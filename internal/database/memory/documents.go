package memory

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// toDocument round-trips v through the bson codec so that structs, maps and
// nested values all come out as bson.D, bson.A and canonical scalars.
func toDocument(v any) (bson.D, error) {
	if v == nil {
		return bson.D{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

func clone(doc bson.D) bson.D {
	out, err := toDocument(doc)
	if err != nil {
		return doc
	}
	return out
}

// lookup resolves a dotted path through embedded documents and arrays.
func lookup(doc bson.D, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case bson.D:
			found := false
			for _, e := range c {
				if e.Key == part {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		case bson.A:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func matches(doc bson.D, filter bson.D) bool {
	for _, cond := range filter {
		val, found := lookup(doc, cond.Key)

		if ops, ok := operators(cond.Value); ok {
			for _, op := range ops {
				if !compareOp(op.Key, val, found, op.Value) {
					return false
				}
			}
			continue
		}

		if !found || !equal(val, cond.Value) {
			return false
		}
	}
	return true
}

// operators reports whether v is a document made only of $-operators.
func operators(v any) (bson.D, bool) {
	d, ok := v.(bson.D)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

func compareOp(op string, val any, found bool, operand any) bool {
	switch op {
	case "$eq":
		return found && equal(val, operand)
	case "$ne":
		return !found || !equal(val, operand)
	case "$exists":
		want, _ := operand.(bool)
		return found == want
	}

	if !found || rank(val) != rank(operand) {
		return false
	}
	cmp := compareOrder(val, operand)
	switch op {
	case "$gt":
		return cmp > 0
	case "$gte":
		return cmp >= 0
	case "$lt":
		return cmp < 0
	case "$lte":
		return cmp <= 0
	}
	return false
}

func equal(a, b any) bool {
	if _, ok := toFloat(a); ok {
		_, ok := toFloat(b)
		return ok && compareNumbers(a, b) == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareNumbers compares two integers exactly and falls back to float64
// when either side is a double.
func compareNumbers(a, b any) int {
	ia, aInt := toInteger(a)
	ib, bInt := toInteger(b)
	if aInt && bInt {
		return cmp.Compare(ia, ib)
	}
	fa, _ := toFloat(a)
	fb, _ := toFloat(b)
	return cmp.Compare(fa, fb)
}

// rank follows the BSON comparison order for the types the store produces.
func rank(v any) int {
	switch v.(type) {
	case nil, bson.Null:
		return 1
	case int32, int64, float64:
		return 2
	case string:
		return 3
	case bson.D:
		return 4
	case bson.A:
		return 5
	case bson.ObjectID:
		return 7
	case bool:
		return 8
	case bson.DateTime:
		return 9
	}
	return 10
}

func compareOrder(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}

	switch av := a.(type) {
	case int32, int64, float64:
		return compareNumbers(av, b)
	case string:
		return strings.Compare(av, b.(string))
	case bson.ObjectID:
		bv := b.(bson.ObjectID)
		return bytes.Compare(av[:], bv[:])
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		}
		return 1
	case bson.DateTime:
		bv := b.(bson.DateTime)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

// applyUpdate applies the operators to a copy of doc; doc itself is left
// untouched so a failing update leaves no partial write behind.
func applyUpdate(doc bson.D, update bson.D) (bson.D, error) {
	out := clone(doc)

	for _, op := range update {
		fields, ok := op.Value.(bson.D)
		if !ok {
			return nil, fmt.Errorf("update operator %s requires a document", op.Key)
		}

		for _, f := range fields {
			if f.Key == "_id" || strings.HasPrefix(f.Key, "_id.") {
				return nil, fmt.Errorf("performing an update on the path '_id' would modify the immutable field '_id'")
			}

			var value any
			switch op.Key {
			case "$set":
				value = f.Value
			case "$inc":
				cur, found := lookup(out, f.Key)
				if !found {
					cur = int32(0)
				}
				sum, err := addNumbers(cur, f.Value)
				if err != nil {
					return nil, fmt.Errorf("cannot $inc field %q: %w", f.Key, err)
				}
				value = sum
			case "$push":
				cur, found := lookup(out, f.Key)
				if !found {
					value = bson.A{f.Value}
					break
				}
				arr, ok := cur.(bson.A)
				if !ok {
					return nil, fmt.Errorf("the field %q must be an array", f.Key)
				}
				value = append(append(bson.A{}, arr...), f.Value)
			default:
				return nil, fmt.Errorf("unsupported update operator %s", op.Key)
			}

			updated, err := setPath(out, strings.Split(f.Key, "."), value)
			if err != nil {
				return nil, err
			}
			out = updated.(bson.D)
		}
	}

	return clone(out), nil
}

func setPath(container any, parts []string, value any) (any, error) {
	switch c := container.(type) {
	case bson.D:
		for i := range c {
			if c[i].Key != parts[0] {
				continue
			}
			if len(parts) == 1 {
				c[i].Value = value
				return c, nil
			}
			nested, err := setPath(c[i].Value, parts[1:], value)
			if err != nil {
				return nil, err
			}
			c[i].Value = nested
			return c, nil
		}
		if len(parts) == 1 {
			return append(c, bson.E{Key: parts[0], Value: value}), nil
		}
		nested, err := setPath(bson.D{}, parts[1:], value)
		if err != nil {
			return nil, err
		}
		return append(c, bson.E{Key: parts[0], Value: nested}), nil
	case bson.A:
		i, err := strconv.Atoi(parts[0])
		if err != nil || i < 0 || i >= len(c) {
			return nil, fmt.Errorf("cannot use the part %q to traverse the array", parts[0])
		}
		if len(parts) == 1 {
			c[i] = value
			return c, nil
		}
		nested, err := setPath(c[i], parts[1:], value)
		if err != nil {
			return nil, err
		}
		c[i] = nested
		return c, nil
	}
	return nil, fmt.Errorf("cannot create field %q in element of type %T", parts[0], container)
}

func addNumbers(a, b any) (any, error) {
	if _, ok := toFloat(a); !ok {
		return nil, fmt.Errorf("existing value %v is not numeric", a)
	}
	if _, ok := toFloat(b); !ok {
		return nil, fmt.Errorf("increment %v is not numeric", b)
	}

	_, aFloat := a.(float64)
	_, bFloat := b.(float64)
	if aFloat || bFloat {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa + fb, nil
	}

	ia, _ := toInt64(a)
	ib, _ := toInt64(b)
	if (ib > 0 && ia > math.MaxInt64-ib) || (ib < 0 && ia < math.MinInt64-ib) {
		return nil, fmt.Errorf("$inc of %d on %d overflows int64", ib, ia)
	}
	sum := ia + ib

	_, a32 := a.(int32)
	_, b32 := b.(int32)
	if a32 && b32 && sum >= math.MinInt32 && sum <= math.MaxInt32 {
		return int32(sum), nil
	}
	return sum, nil
}
