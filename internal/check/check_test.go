package check

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	outcomes map[string][]bool
}

func (f *fakeRecorder) RecordCheck(name string, ok bool) {
	if f.outcomes == nil {
		f.outcomes = map[string][]bool{}
	}
	f.outcomes[name] = append(f.outcomes[name], ok)
}

func TestStatusIs(t *testing.T) {
	pred := StatusIs(200)
	for _, code := range []int{0, 199, 201, 204, 301, 400, 404, 500, 503} {
		assert.False(t, pred(Response{Status: code}), "status %d", code)
	}
	assert.True(t, pred(Response{Status: 200}))
}

func TestJSONExists(t *testing.T) {
	pred := JSONExists("total_monthly_cost")
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"number", `{"total_monthly_cost": 42.5}`, true},
		{"zero", `{"total_monthly_cost": 0}`, true},
		{"null", `{"total_monthly_cost": null}`, true},
		{"string", `{"total_monthly_cost": "42.5"}`, true},
		{"object", `{"total_monthly_cost": {"amount": 1}}`, true},
		{"false", `{"total_monthly_cost": false}`, true},
		{"empty object", `{}`, false},
		{"nested elsewhere", `{"summary": {"total_monthly_cost": 1}}`, false},
		{"invalid json", `{"total_monthly_cost": 42.5`, false},
		{"html error page", `<html>502 Bad Gateway</html>`, false},
		{"empty body", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pred(Response{Status: 200, Body: []byte(tt.body)}))
		})
	}
}

func TestJSONExistsAcceptsDollarPrefix(t *testing.T) {
	body := []byte(`{"currency": "USD", "resources": [{"address": "aws_instance.test"}]}`)
	assert.True(t, JSONExists("$.currency")(Response{Body: body}))
	assert.True(t, JSONExists("resources.0.address")(Response{Body: body}))
	assert.True(t, JSONExists("$")(Response{Body: body}))
	assert.False(t, JSONExists("$.missing")(Response{Body: body}))
}

func TestRunAndRecord(t *testing.T) {
	rec := &fakeRecorder{}
	checks := []Check{
		{Name: "status is 200", Fn: StatusIs(200)},
		{Name: "has total cost", Fn: JSONExists("total_monthly_cost")},
	}

	outcomes, all := RunAndRecord(rec, Response{Status: 200, Body: []byte(`{}`)}, checks...)
	require.Len(t, outcomes, 2)
	assert.False(t, all)
	assert.Equal(t, Outcome{Name: "status is 200", OK: true}, outcomes[0])
	assert.Equal(t, Outcome{Name: "has total cost", OK: false}, outcomes[1])
	assert.Equal(t, []bool{true}, rec.outcomes["status is 200"])
	assert.Equal(t, []bool{false}, rec.outcomes["has total cost"])
}

func TestRunTreatsPanicAndNilAsFailure(t *testing.T) {
	outcomes := Run(Response{Err: errors.New("dial tcp: connection refused")},
		Check{Name: "panics", Fn: func(Response) bool { panic("boom") }},
		Check{Name: "nil", Fn: nil},
	)
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
}
