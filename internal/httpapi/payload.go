package httpapi

import "strings"

// Clients of the private and personal ride endpoints send the same
// logical value under different keys depending on app version. Each
// logical field therefore has an ordered list of extraction paths,
// evaluated first match wins. The tables below are the single place
// this tolerance is defined.

// fieldPath is one candidate location inside a decoded JSON object.
type fieldPath []string

// fieldRule binds a logical field to its candidate paths in priority
// order.
type fieldRule struct {
	name  string
	paths []fieldPath
}

var privateRideRules = []fieldRule{
	{"passengerName", []fieldPath{{"passengerName"}, {"passenger", "name"}, {"passenger", "fullName"}}},
	{"passengerPhone", []fieldPath{{"passengerPhone"}, {"passenger", "phone"}, {"passenger", "phoneNumber"}}},
	{"pickupLocation", []fieldPath{{"pickupLocation"}, {"pickup", "location"}, {"pickup", "coords"}}},
	{"destination", []fieldPath{{"destination", "location"}, {"destination", "coords"}, {"destination"}}},
	{"pickupAddress", []fieldPath{{"pickupAddress"}, {"pickup", "address"}}},
	{"destinationAddress", []fieldPath{{"destinationAddress"}, {"destination", "address"}}},
	{"passengers", []fieldPath{{"passengers"}, {"passenger", "count"}}},
	{"notes", []fieldPath{{"notes"}, {"meta", "notes"}}},
}

var personalRideRules = []fieldRule{
	{"passengerPhone", []fieldPath{{"phone"}, {"passenger", "phone"}, {"passengerPhone"}, {"contact", "phone"}}},
	{"passengerName", []fieldPath{{"passenger", "name"}, {"passenger", "fullName"}}},
	{"passengerId", []fieldPath{{"passengerId"}, {"passenger", "id"}}},
	{"pickupLocation", []fieldPath{{"pickup", "location"}, {"pickupLocation"}}},
	{"destination", []fieldPath{{"destination", "location"}, {"destination"}}},
	{"notes", []fieldPath{{"notes"}, {"meta", "notes"}}},
}

// extract walks the rules against a decoded payload and returns the
// chosen value per logical field. Absent fields are omitted.
func extract(raw map[string]any, rules []fieldRule) map[string]any {
	out := make(map[string]any, len(rules))
	for _, rule := range rules {
		for _, path := range rule.paths {
			if v, ok := lookup(raw, path); ok {
				out[rule.name] = v
				break
			}
		}
	}
	return out
}

func lookup(raw map[string]any, path fieldPath) (any, bool) {
	var cur any = raw
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	if s, ok := cur.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false
		}
		return s, true
	}
	return cur, true
}

func stringField(fields map[string]any, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}

func intField(fields map[string]any, name string) int {
	switch v := fields[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
