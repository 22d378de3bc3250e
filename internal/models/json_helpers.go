package models

import "encoding/json"

// marshalJSON serializes v to a string for storage in a text column,
// returning "" for a nil/empty-equivalent value so the column can stay
// NOT NULL without a sentinel.
func marshalJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalJSON deserializes a text column into v, treating an empty
// string as a no-op.
func unmarshalJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func marshalStringSlice(v []string) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	return marshalJSON(v)
}

func unmarshalStringSlice(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var v []string
	if err := unmarshalJSON(s, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func marshalStringMap(v map[string]any) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	return marshalJSON(v)
}

func unmarshalStringMap(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var v map[string]any
	if err := unmarshalJSON(s, &v); err != nil {
		return nil, err
	}
	return v, nil
}
