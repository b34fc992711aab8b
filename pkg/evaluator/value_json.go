package evaluator

import (
	"encoding/json"
	"math"
)

// ValueToJSON marshals a Value to JSON bytes. Objects become
// {"type", "interface", "raw"} records; nullptr becomes null.
func ValueToJSON(v Value) ([]byte, error) {
	return json.Marshal(valueToRaw(v))
}

// ValueToJSONString is a convenience that returns a string.
func ValueToJSONString(v Value) string {
	b, err := ValueToJSON(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// BindingsToJSON marshals bindings as one JSON object keyed by name,
// preserving binding order.
func BindingsToJSON(bindings []Binding) ([]byte, error) {
	pairs := make([]keyValue, len(bindings))
	for i, b := range bindings {
		pairs[i] = keyValue{Key: b.Name, Value: &typedValue{Type: b.Type.String(), Value: valueToRaw(b.Value)}}
	}
	return json.Marshal(&orderedRecord{pairs: pairs})
}

type typedValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type objectJSON struct {
	Type      string `json:"type"`
	Interface string `json:"interface"`
	Raw       string `json:"raw"`
}

func valueToRaw(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return val.Value
	case Int:
		return val.Value
	case Double:
		// encoding/json rejects non-finite numbers
		if math.IsInf(val.Value, 0) || math.IsNaN(val.Value) {
			return Describe(val)
		}
		return val.Value
	case String:
		return val.Value
	case Object:
		return &objectJSON{Type: val.TypeName, Interface: val.Interface, Raw: val.Raw}
	case List:
		items := make([]any, len(val.Items))
		for i, item := range val.Items {
			items[i] = valueToRaw(item)
		}
		return items
	}
	return nil
}

type keyValue struct {
	Key   string
	Value any
}

// orderedRecord preserves key order in JSON output.
type orderedRecord struct {
	pairs []keyValue
}

func (o *orderedRecord) MarshalJSON() ([]byte, error) {
	if len(o.pairs) == 0 {
		return []byte("{}"), nil
	}

	buf := []byte{'{'}
	for i, kv := range o.pairs {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')

		valBytes, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}
