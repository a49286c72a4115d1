// Package flow implements the event–flow matcher (spec.md §4.5) and the
// flow execution engine (spec.md §4.4).
package flow

import (
	"encoding/json"
	"strings"

	"orchepy/pkg/models"
)

// Match returns, in the given order, the active flows whose trigger event
// type equals event.EventType and whose filter predicates all pass.
func Match(event models.Event, flows []models.Flow) []models.Flow {
	var matched []models.Flow
	for _, f := range flows {
		if matches(event, f) {
			matched = append(matched, f)
		}
	}
	return matched
}

func matches(event models.Event, f models.Flow) bool {
	if !f.Active {
		return false
	}
	if event.EventType != f.Trigger.EventType {
		return false
	}
	if len(f.Trigger.Filters) == 0 || string(f.Trigger.Filters) == "null" {
		return true
	}
	return checkFilters(event.Data, f.Trigger.Filters)
}

// checkFilters implements the suffix-encoded filter DSL from spec.md §4.5:
// <field> (equality), <field>_ne/_gt/_lt/_gte/_lte (comparison).
func checkFilters(eventData, filters json.RawMessage) bool {
	var filterObj map[string]json.RawMessage
	if err := json.Unmarshal(filters, &filterObj); err != nil {
		return true
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(eventData, &data); err != nil {
		data = map[string]json.RawMessage{}
	}

	for key, filterRaw := range filterObj {
		field, op := splitSuffix(key)
		eventRaw, present := data[field]

		switch op {
		case "_gt", "_lt", "_gte", "_lte", "_ne":
			if !present {
				return false
			}
			if !checkComparison(op, eventRaw, filterRaw) {
				return false
			}
		default:
			if !present || !deepEqualRaw(eventRaw, filterRaw) {
				return false
			}
		}
	}
	return true
}

func splitSuffix(key string) (field, op string) {
	for _, suffix := range []string{"_gte", "_lte", "_gt", "_lt", "_ne"} {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix), suffix
		}
	}
	return key, ""
}

func checkComparison(op string, eventRaw, filterRaw json.RawMessage) bool {
	cmp, ok := compareValues(eventRaw, filterRaw)
	if !ok {
		return false
	}
	switch op {
	case "_gt":
		return cmp > 0
	case "_lt":
		return cmp < 0
	case "_gte":
		return cmp >= 0
	case "_lte":
		return cmp <= 0
	case "_ne":
		return !deepEqualRaw(eventRaw, filterRaw)
	default:
		return false
	}
}

// compareValues orders two JSON scalars: numbers compare as 64-bit floats,
// strings compare lexicographically. Mixed or unsupported types report ok=false.
func compareValues(a, b json.RawMessage) (int, bool) {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return 0, false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return 0, false
	}
	switch aNum := av.(type) {
	case float64:
		bNum, ok := bv.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case aNum < bNum:
			return -1, true
		case aNum > bNum:
			return 1, true
		default:
			return 0, true
		}
	case string:
		bStr, ok := bv.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(aNum, bStr), true
	default:
		return 0, false
	}
}

func deepEqualRaw(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	aj, _ := json.Marshal(av)
	bj, _ := json.Marshal(bv)
	return string(aj) == string(bj)
}
