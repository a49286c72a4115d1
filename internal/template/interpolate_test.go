package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolateStringSubstitutesField(t *testing.T) {
	data := map[string]any{"order_id": "A1"}
	got := InterpolateString(`id: ${event.data.order_id}`, data)
	assert.Equal(t, "id: A1", got)
}

func TestInterpolateStringMissingFieldRendersEmpty(t *testing.T) {
	data := map[string]any{}
	got := InterpolateString(`id: ${event.data.order_id}`, data)
	assert.Equal(t, "id: ", got)
}

func TestInterpolateStringNumberRendersWithoutDecimal(t *testing.T) {
	data := map[string]any{"amount": float64(500)}
	got := InterpolateString(`${event.data.amount}`, data)
	assert.Equal(t, "500", got)
}

func TestInterpolateStringEmptiesUnrecognizedPlaceholder(t *testing.T) {
	data := map[string]any{"order_id": "A1"}
	got := InterpolateString(`${event.id} / ${foo} / ${event.data.order_id}`, data)
	assert.Equal(t, " /  / A1", got)
}

func TestInterpolateStringLeavesUnterminatedPlaceholderLiteral(t *testing.T) {
	data := map[string]any{"order_id": "A1"}
	got := InterpolateString(`id: ${event.data.order_id ends here`, data)
	assert.Equal(t, "id: ${event.data.order_id ends here", got)
}

func TestInterpolateValueRecursesThroughObjects(t *testing.T) {
	data := map[string]any{"order_id": "A1"}
	v := map[string]any{"id": "${event.data.order_id}", "nested": []any{"${event.data.order_id}"}}
	result := InterpolateValue(v, data).(map[string]any)
	assert.Equal(t, "A1", result["id"])
	assert.Equal(t, "A1", result["nested"].([]any)[0])
}
