package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Resolver is the minimal read surface the codec needs from the inventory
// client (C2) to resolve mo_link/two-way link/prm_link values into
// human-readable names. Implemented by inventory.Client; declared here to
// keep model I/O-free while avoiding an import cycle.
type Resolver interface {
	MosByMoIDs(ctx context.Context, moIDs []int64) ([]Mo, error)
	PrmsByPrmIDs(ctx context.Context, prmIDs []int64) ([]Prm, error)
}

// ConvertValue decodes a raw inventory value into a typed scalar or list
// based on the owning Tprm's ValType and Multiple flag (spec §4.3,
// SPEC_FULL §9 "Blob = hex-serialized, multi-valued"). Multiple-valued
// parameters arrive as an opaque hex-encoded blob (pickled list on the
// Python side); this codec decodes it as a JSON array of scalars instead,
// since the Go side never round-trips through Python pickle.
func ConvertValue(raw interface{}, tprm Tprm) (interface{}, error) {
	if tprm.Multiple {
		return convertMultiple(raw, tprm.ValType)
	}
	return convertScalar(raw, tprm.ValType)
}

func convertMultiple(raw interface{}, valType ValType) (interface{}, error) {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			converted, err := convertScalar(item, valType)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case string:
		// Hex-encoded JSON array, the Go-native analogue of the Python
		// pickle blob described in SPEC_FULL §9.
		raw, err := hexDecodeJSON(v)
		if err != nil {
			return nil, err
		}
		return convertMultiple(raw, valType)
	default:
		return nil, fmt.Errorf("unsupported multiple-value encoding %T for val_type %s", raw, valType)
	}
}

func convertScalar(raw interface{}, valType ValType) (interface{}, error) {
	s, isStr := raw.(string)
	switch valType {
	case ValTypeInt, ValTypeMoLink, ValTypeTwoWayLink, ValTypePrmLink:
		if isStr {
			return strconv.ParseInt(s, 10, 64)
		}
		return toInt64(raw)
	case ValTypeFloat:
		if isStr {
			return strconv.ParseFloat(s, 64)
		}
		return toFloat64(raw)
	case ValTypeBool:
		if isStr {
			return s == "true" || s == "1", nil
		}
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("unsupported bool encoding %T", raw)
		}
		return b, nil
	case ValTypeDatetime:
		if !isStr {
			return nil, fmt.Errorf("datetime value must be a string, got %T", raw)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, err
		}
		return t.Format(time.RFC3339), nil
	case ValTypeDate:
		if !isStr {
			return nil, fmt.Errorf("date value must be a string, got %T", raw)
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, err
		}
		return t.Format("2006-01-02"), nil
	default: // str and anything unrecognized pass through unconverted
		return raw, nil
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("cannot widen %T to int64", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("cannot widen %T to float64", v)
	}
}

// ResolveParsedValue resolves a link-typed PRM's value into a ParsedValue
// carrying human-readable names and invalidation triggers (spec §4.3).
// fill_by_two_way_mo_link in the original delegates to the prm_link
// resolver, not the mo_link resolver — an asymmetry preserved here:
// two-way links resolve like PRM links (they point at a reciprocal PRM,
// not directly at an MO).
func ResolveParsedValue(ctx context.Context, prm Prm, tprm Tprm, resolver Resolver) (*ParsedValue, error) {
	if !tprm.IsLinkType() {
		return nil, nil
	}
	switch tprm.ValType {
	case ValTypeMoLink:
		return resolveMoLink(ctx, prm, resolver)
	case ValTypeTwoWayLink, ValTypePrmLink:
		return resolvePrmLink(ctx, prm, resolver)
	default:
		return nil, nil
	}
}

func resolveMoLink(ctx context.Context, prm Prm, resolver Resolver) (*ParsedValue, error) {
	ids, err := toInt64Slice(prm.Value)
	if err != nil {
		return nil, err
	}
	mos, err := resolver.MosByMoIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(mos))
	byID := make(map[int64]Mo, len(mos))
	for _, mo := range mos {
		byID[mo.ID] = mo
	}
	triggerMos := make([]int64, 0, len(ids))
	for _, id := range ids {
		if mo, ok := byID[id]; ok {
			names = append(names, mo.Name)
			triggerMos = append(triggerMos, id)
		}
	}
	return &ParsedValue{
		RawValue: prm.Value,
		Value:    names,
		Triggers: ParsedValueTriggers{Mos: triggerMos},
	}, nil
}

func resolvePrmLink(ctx context.Context, prm Prm, resolver Resolver) (*ParsedValue, error) {
	ids, err := toInt64Slice(prm.Value)
	if err != nil {
		return nil, err
	}
	prms, err := resolver.PrmsByPrmIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, 0, len(prms))
	triggerPrms := make([]int64, 0, len(ids))
	triggerMos := make([]int64, 0, len(ids))
	for _, p := range prms {
		values = append(values, p.Value)
		triggerPrms = append(triggerPrms, p.ID)
		triggerMos = append(triggerMos, p.MoID)
	}
	return &ParsedValue{
		RawValue: prm.Value,
		Value:    values,
		Triggers: ParsedValueTriggers{Mos: triggerMos, Prms: triggerPrms},
	}, nil
}

func toInt64Slice(raw interface{}) ([]int64, error) {
	switch v := raw.(type) {
	case []int64:
		return v, nil
	case []interface{}:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			n, err := toInt64(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case int64:
		return []int64{v}, nil
	case float64:
		return []int64{int64(v)}, nil
	default:
		return nil, fmt.Errorf("cannot interpret %T as an id or id list", raw)
	}
}

func hexDecodeJSON(hexStr string) (interface{}, error) {
	b, err := decodeHex(hexStr)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding multi-valued blob: %w", err)
	}
	return out, nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexDigit(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

// StringifyValue emits canonical JSON for a non-scalar value: stable key
// order, used by both the add_indexed_field and group_nodes passes (spec
// §4.5 steps 2 and 7) when a param value must become a vertex property or
// a grouping node's name.
func StringifyValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(val))
		for _, k := range keys {
			ordered[k] = val[k]
		}
		b, _ := json.Marshal(orderedMap{keys: keys, values: ordered})
		return string(b)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// orderedMap marshals to JSON with keys in a caller-specified order,
// since encoding/json always sorts map[string]... keys lexicographically
// on its own; this type exists to make that explicit and stable even if a
// future refactor swaps the underlying container.
type orderedMap struct {
	keys   []string
	values map[string]interface{}
}

func (o orderedMap) MarshalJSON() ([]byte, error) {
	var buf []byte
	buf = append(buf, '{')
	for i, k := range o.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}
