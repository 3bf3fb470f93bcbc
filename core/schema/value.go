package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Normalize converts a Go value into the document value union: nil, bool,
// int32, int64, float64, string, []any or Document. Maps are converted to
// documents with their keys sorted, since Go maps carry no order. Values the
// union does not describe (ObjectIDs, timestamps, ...) are returned unchanged.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, int32, int64, float64, string:
		return val
	case int:
		return int64(val)
	case int8:
		return int32(val)
	case int16:
		return int32(val)
	case uint8:
		return int32(val)
	case uint16:
		return int32(val)
	case uint32:
		return int64(val)
	case uint:
		if uint64(val) > math.MaxInt64 {
			return float64(val)
		}
		return int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return float64(val)
		}
		return int64(val)
	case float32:
		return float64(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case Document:
		out := make(Document, len(val))
		for i, f := range val {
			out[i] = Field{Key: f.Key, Value: Normalize(f.Value)}
		}
		return out
	case bson.D:
		return Normalize(Document(val))
	case bson.M:
		return fromMap(val)
	case map[string]any:
		return fromMap(val)
	case bson.A:
		return normalizeList([]any(val))
	case []any:
		return normalizeList(val)
	case []Document:
		out := make([]any, len(val))
		for i, d := range val {
			out[i] = Normalize(d)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = fromMap(m)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

func normalizeList(list []any) []any {
	out := make([]any, len(list))
	for i, item := range list {
		out[i] = Normalize(item)
	}
	return out
}

func fromMap(m map[string]any) Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Document, len(keys))
	for i, k := range keys {
		out[i] = Field{Key: k, Value: Normalize(m[k])}
	}
	return out
}

// FromMap converts a map into a document with keys in sorted order.
func FromMap(m map[string]any) Document {
	return fromMap(m)
}

// ToFloat64 converts a numeric value of any width to float64. It returns
// false for every non-numeric value.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// toInt64 returns the value of an integer of any width that fits in int64.
func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	default:
		return 0, false
	}
}

// exactInt returns f as an int64 when f is integral and inside the int64
// range.
func exactInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// compareNumbers orders two numeric values. Integers compare exactly as
// int64; an integer and a float compare without rounding the integer.
func compareNumbers(a, b any) int {
	ai, aInt := toInt64(a)
	bi, bInt := toInt64(b)
	switch {
	case aInt && bInt:
		return cmpInt64(ai, bi)
	case aInt:
		bf, _ := ToFloat64(b)
		return compareIntFloat(ai, bf)
	case bInt:
		af, _ := ToFloat64(a)
		return -compareIntFloat(bi, af)
	}

	af, _ := ToFloat64(a)
	bf, _ := ToFloat64(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	case af == bf:
		return 0
	case math.IsNaN(af) && math.IsNaN(bf):
		return 0
	case math.IsNaN(af):
		return -1
	default:
		return 1
	}
}

// compareIntFloat orders i against f. NaN sorts before every number.
func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= 1<<63:
		return -1
	case f < -(1 << 63):
		return 1
	}
	t := math.Trunc(f)
	if c := cmpInt64(i, int64(t)); c != 0 {
		return c
	}
	switch {
	case f > t:
		return -1
	case f < t:
		return 1
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IsNumber reports whether v is a numeric value.
func IsNumber(v any) bool {
	_, ok := ToFloat64(v)
	return ok
}

// TypeName returns the name of the value's variant in the document union.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case Document:
		return "document"
	case []any:
		return "list"
	}
	if IsNumber(v) {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// typeRank orders the variants for cross-type comparison, following the
// MongoDB comparison order.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	case Document:
		return 3
	case []any:
		return 4
	case primitive.ObjectID:
		return 5
	case bool:
		return 6
	case primitive.DateTime:
		return 7
	}
	if IsNumber(v) {
		return 1
	}
	return 8
}

// Compare returns -1, 0 or 1 ordering a before, equal to, or after b. Numbers
// compare by value regardless of width; values of different variants compare
// by variant rank.
func Compare(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch av := a.(type) {
	case nil:
		return 0
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case Document:
		bv := b.(Document)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := strings.Compare(av[i].Key, bv[i].Key); c != 0 {
				return c
			}
			if c := Compare(av[i].Value, bv[i].Value); c != 0 {
				return c
			}
		}
		return cmpInt(len(av), len(bv))
	case []any:
		bv := b.([]any)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(av), len(bv))
	case primitive.ObjectID:
		return strings.Compare(av.Hex(), b.(primitive.ObjectID).Hex())
	case primitive.DateTime:
		return cmpInt(int(av), int(b.(primitive.DateTime)))
	}

	if IsNumber(a) {
		return compareNumbers(a, b)
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two values are equal under Compare.
func Equal(a, b any) bool {
	return Compare(a, b) == 0
}

// KeyOf returns a canonical string for v such that KeyOf(a) == KeyOf(b)
// exactly when Equal(a, b). It is used for hash partitioning and as the
// storage key of identities.
func KeyOf(v any) string {
	var sb strings.Builder
	writeKey(&sb, v)
	return sb.String()
}

func writeKey(sb *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		sb.WriteString("n")
	case bool:
		if val {
			sb.WriteString("b1")
		} else {
			sb.WriteString("b0")
		}
	case string:
		sb.WriteString("s")
		sb.WriteString(fmt.Sprintf("%q", val))
	case Document:
		sb.WriteString("{")
		for i, f := range val {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(fmt.Sprintf("%q:", f.Key))
			writeKey(sb, f.Value)
		}
		sb.WriteString("}")
	case []any:
		sb.WriteString("[")
		for i, item := range val {
			if i > 0 {
				sb.WriteString(",")
			}
			writeKey(sb, item)
		}
		sb.WriteString("]")
	case primitive.ObjectID:
		sb.WriteString("o")
		sb.WriteString(val.Hex())
	default:
		if i, ok := toInt64(v); ok {
			sb.WriteString("i")
			sb.WriteString(strconv.FormatInt(i, 10))
			return
		}
		if f, ok := ToFloat64(v); ok {
			if i, ok := exactInt(f); ok {
				sb.WriteString("i")
				sb.WriteString(strconv.FormatInt(i, 10))
				return
			}
			sb.WriteString("d")
			sb.WriteString(fmt.Sprintf("%v", f))
			return
		}
		sb.WriteString(fmt.Sprintf("x%T:%v", v, v))
	}
}

// Truthy reports the boolean interpretation of a value: false, null, zero
// and missing values are false, everything else is true.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	}
	if f, ok := ToFloat64(v); ok {
		return f != 0
	}
	return true
}
