package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrParameterNotFound is returned when a parameter is missing.
	ErrParameterNotFound = errors.New("parameter not found")
	// ErrParameterType is returned when a parameter has the wrong kind or cannot be decoded.
	ErrParameterType = errors.New("parameter has wrong type")
)

// ParameterKind is the shape of a parameter value.
type ParameterKind string

const (
	KindDecimal  ParameterKind = "decimal"
	KindInt      ParameterKind = "int"
	KindString   ParameterKind = "string"
	KindJSON     ParameterKind = "json"
	KindDate     ParameterKind = "date"
	KindOptional ParameterKind = "optional"
	KindUnion    ParameterKind = "union"
)

// Parameter is a single product or instance parameter value.
// Optional parameters distinguish unset from set through IsSet.
type Parameter struct {
	Kind  ParameterKind `json:"kind"`
	Value string        `json:"value"`
	IsSet bool          `json:"is_set,omitempty"`
}

func DecimalParam(v string) Parameter { return Parameter{Kind: KindDecimal, Value: v} }
func IntParam(v int) Parameter        { return Parameter{Kind: KindInt, Value: strconv.Itoa(v)} }
func StringParam(v string) Parameter  { return Parameter{Kind: KindString, Value: v} }
func UnionParam(key string) Parameter { return Parameter{Kind: KindUnion, Value: key} }

func DateParam(t time.Time) Parameter {
	return Parameter{Kind: KindDate, Value: t.UTC().Format(time.RFC3339)}
}

// JSONParam encodes v as a JSON parameter. It panics if v cannot be encoded,
// so it is meant for literals.
func JSONParam(v any) Parameter {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Parameter{Kind: KindJSON, Value: string(b)}
}

// OptionalParam wraps a value that is set.
func OptionalParam(v string) Parameter { return Parameter{Kind: KindOptional, Value: v, IsSet: true} }

// UnsetParam is an optional parameter with no value.
func UnsetParam() Parameter { return Parameter{Kind: KindOptional} }

// Parameters is the parameter set of an account, keyed by name.
type Parameters map[string]Parameter

// Names returns the parameter names in sorted order.
func (p Parameters) Names() []string {
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge returns a copy of p overridden by other.
func (p Parameters) Merge(other Parameters) Parameters {
	out := make(Parameters, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (p Parameters) get(name string, kinds ...ParameterKind) (Parameter, error) {
	v, ok := p[name]
	if !ok {
		return Parameter{}, fmt.Errorf("%w: %s", ErrParameterNotFound, name)
	}
	for _, k := range kinds {
		if v.Kind == k {
			return v, nil
		}
	}
	return Parameter{}, fmt.Errorf("%w: %s is %s, want %v", ErrParameterType, name, v.Kind, kinds)
}

// Has reports whether name is present.
func (p Parameters) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Decimal reads a decimal parameter. Int parameters are accepted.
func (p Parameters) Decimal(name string) (decimal.Decimal, error) {
	v, err := p.get(name, KindDecimal, KindInt)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(v.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrParameterType, name, err)
	}
	return d, nil
}

// Int reads an integer parameter.
func (p Parameters) Int(name string) (int, error) {
	v, err := p.get(name, KindInt)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrParameterType, name, err)
	}
	return n, nil
}

// IntOr reads an integer parameter, falling back to def when it is absent.
func (p Parameters) IntOr(name string, def int) (int, error) {
	if !p.Has(name) {
		return def, nil
	}
	return p.Int(name)
}

// String reads a string parameter.
func (p Parameters) String(name string) (string, error) {
	v, err := p.get(name, KindString)
	if err != nil {
		return "", err
	}
	return v.Value, nil
}

// Date reads an RFC 3339 date parameter.
func (p Parameters) Date(name string) (time.Time, error) {
	v, err := p.get(name, KindDate)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrParameterType, name, err)
	}
	return t, nil
}

func (p Parameters) decodeJSON(name string, dst any) error {
	v, err := p.get(name, KindJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(v.Value), dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrParameterType, name, err)
	}
	return nil
}

// scalar accepts JSON strings and numbers as map values.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = scalar(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = scalar(n.String())
	return nil
}

// StringMap reads a JSON object of scalars.
func (p Parameters) StringMap(name string) (map[string]string, error) {
	var raw map[string]scalar
	if err := p.decodeJSON(name, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = string(v)
	}
	return out, nil
}

// DecimalMap reads a JSON object whose values are decimals.
func (p Parameters) DecimalMap(name string) (map[string]decimal.Decimal, error) {
	m, err := p.StringMap(name)
	if err != nil {
		return nil, err
	}
	return toDecimalMap(name, m)
}

func toDecimalMap(name string, m map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%s]: %v", ErrParameterType, name, k, err)
		}
		out[k] = d
	}
	return out, nil
}

// NestedStringMap reads a JSON object of JSON objects of scalars.
func (p Parameters) NestedStringMap(name string) (map[string]map[string]string, error) {
	var raw map[string]map[string]scalar
	if err := p.decodeJSON(name, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]map[string]string, len(raw))
	for k, inner := range raw {
		m := make(map[string]string, len(inner))
		for ik, iv := range inner {
			m[ik] = string(iv)
		}
		out[k] = m
	}
	return out, nil
}

// StringList reads a JSON array of strings.
func (p Parameters) StringList(name string) ([]string, error) {
	var out []string
	if err := p.decodeJSON(name, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OptionalDecimal reads an optional decimal. The bool is false when unset.
func (p Parameters) OptionalDecimal(name string) (decimal.Decimal, bool, error) {
	v, err := p.get(name, KindOptional)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !v.IsSet {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(v.Value)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: %s: %v", ErrParameterType, name, err)
	}
	return d, true, nil
}

// OptionalInt reads an optional integer. The bool is false when unset.
func (p Parameters) OptionalInt(name string) (int, bool, error) {
	v, err := p.get(name, KindOptional)
	if err != nil {
		return 0, false, err
	}
	if !v.IsSet {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrParameterType, name, err)
	}
	return n, true, nil
}

// Union reads a union parameter and checks its key is one of allowed.
func (p Parameters) Union(name string, allowed ...string) (string, error) {
	v, err := p.get(name, KindUnion)
	if err != nil {
		return "", err
	}
	if len(allowed) == 0 {
		return v.Value, nil
	}
	for _, a := range allowed {
		if v.Value == a {
			return v.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %s is %q, want one of %v", ErrParameterType, name, v.Value, allowed)
}
