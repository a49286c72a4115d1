package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"orchepy/pkg/models"
)

func src(data string) FieldSource {
	return FieldSource{Data: json.RawMessage(data), Status: "active", CurrentPhase: "Review"}
}

func TestEvaluateNumericOperators(t *testing.T) {
	s := src(`{"amount": 5000}`)
	ok, err := Evaluate("data.amount", ">", float64(1000), s)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Evaluate("data.amount", "<", float64(1000), s)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateEquality(t *testing.T) {
	s := src(`{"status": "open"}`)
	ok, err := Evaluate("data.status", "==", "open", s)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateContainsRequiresStrings(t *testing.T) {
	s := src(`{"amount": 5000}`)
	_, err := Evaluate("data.amount", "contains", "50", s)
	assert.Error(t, err)
}

func TestEvaluateMissingFieldIsError(t *testing.T) {
	s := src(`{}`)
	_, err := Evaluate("data.amount", ">", float64(1), s)
	assert.Error(t, err)
}

func TestComplexAndAllLeavesTrue(t *testing.T) {
	cond := models.Condition{
		LogicalOp: models.LogicalAnd,
		Conditions: []models.SimpleCondition{
			{Field: "data.amount", Operator: ">", Value: json.RawMessage(`1000`)},
			{Field: "status", Operator: "==", Value: json.RawMessage(`"active"`)},
		},
	}
	ok, err := EvaluateCondition(cond, src(`{"amount": 5000}`))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestComplexOrSecondLeafTrue(t *testing.T) {
	cond := models.Condition{
		LogicalOp: models.LogicalOr,
		Conditions: []models.SimpleCondition{
			{Field: "data.amount", Operator: ">", Value: json.RawMessage(`100000`)},
			{Field: "status", Operator: "==", Value: json.RawMessage(`"active"`)},
		},
	}
	ok, err := EvaluateCondition(cond, src(`{"amount": 5000}`))
	require.NoError(t, err)
	assert.True(t, ok)
}
