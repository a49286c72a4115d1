package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"orchepy/pkg/models"
)

func newTestFlow(active bool, eventType string, filters string) models.Flow {
	f := models.Flow{
		Active: active,
		Trigger: models.FlowTrigger{
			EventType: eventType,
		},
	}
	if filters != "" {
		f.Trigger.Filters = json.RawMessage(filters)
	}
	return f
}

func TestMatchInactiveFlowNeverMatches(t *testing.T) {
	event := models.Event{EventType: "payment.completed", Data: json.RawMessage(`{}`)}
	flows := []models.Flow{newTestFlow(false, "payment.completed", "")}
	assert.Empty(t, Match(event, flows))
}

func TestMatchGtFilterPasses(t *testing.T) {
	event := models.Event{EventType: "payment.completed", Data: json.RawMessage(`{"amount":500,"order_id":"A1"}`)}
	flows := []models.Flow{newTestFlow(true, "payment.completed", `{"amount_gt":100}`)}
	assert.Len(t, Match(event, flows), 1)
}

func TestMatchComparisonFailsWhenFieldAbsent(t *testing.T) {
	event := models.Event{EventType: "payment.completed", Data: json.RawMessage(`{"order_id":"A1"}`)}
	flows := []models.Flow{newTestFlow(true, "payment.completed", `{"amount_gt":100}`)}
	assert.Empty(t, Match(event, flows))
}

func TestMatchNonMatchingAmount(t *testing.T) {
	event := models.Event{EventType: "payment.completed", Data: json.RawMessage(`{"amount":50,"order_id":"A2"}`)}
	flows := []models.Flow{newTestFlow(true, "payment.completed", `{"amount_gt":100}`)}
	assert.Empty(t, Match(event, flows))
}

func TestMatchEqualityDeepJSON(t *testing.T) {
	event := models.Event{EventType: "order.updated", Data: json.RawMessage(`{"status":"shipped"}`)}
	flows := []models.Flow{newTestFlow(true, "order.updated", `{"status":"shipped"}`)}
	assert.Len(t, Match(event, flows), 1)

	flows = []models.Flow{newTestFlow(true, "order.updated", `{"status":"delivered"}`)}
	assert.Empty(t, Match(event, flows))
}

func TestMatchNeFilter(t *testing.T) {
	event := models.Event{EventType: "order.updated", Data: json.RawMessage(`{"status":"shipped"}`)}
	flows := []models.Flow{newTestFlow(true, "order.updated", `{"status_ne":"delivered"}`)}
	assert.Len(t, Match(event, flows), 1)
}

func TestMatchEventTypeMismatch(t *testing.T) {
	event := models.Event{EventType: "order.created", Data: json.RawMessage(`{}`)}
	flows := []models.Flow{newTestFlow(true, "order.updated", "")}
	assert.Empty(t, Match(event, flows))
}
