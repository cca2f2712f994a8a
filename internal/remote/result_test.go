package remote

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStates(t *testing.T) {
	var zero Result[int]
	assert.True(t, zero.IsPending())

	done := Complete(42)
	v, ok := done.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 42, done.MustValue())

	failed := Failed[int](errors.New("boom"))
	assert.True(t, failed.IsError())
	assert.EqualError(t, failed.Err(), "boom")
	assert.Equal(t, 7, failed.ValueOr(7))

	assert.Panics(t, func() { Pending[int]().MustValue() })
}

func TestAwait(t *testing.T) {
	errA := errors.New("a failed")

	tests := []struct {
		name    string
		deps    []Awaitable
		status  Status
		wantErr error
	}{
		{"no deps", nil, StatusComplete, nil},
		{"all complete", []Awaitable{Complete(1), Complete("x")}, StatusComplete, nil},
		{"one pending", []Awaitable{Complete(1), Pending[string]()}, StatusPending, nil},
		{"error beats pending", []Awaitable{Pending[int](), Failed[string](errA)}, StatusError, errA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := Await(tt.deps...)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestDeriveRunsOnlyWhenComplete(t *testing.T) {
	calls := 0
	compute := func(a Result[int], b Result[int]) Result[int] {
		return Derive([]Awaitable{a, b}, func() (int, error) {
			calls++
			return a.MustValue() + b.MustValue(), nil
		})
	}

	assert.True(t, compute(Complete(1), Pending[int]()).IsPending())
	assert.True(t, compute(Failed[int](errors.New("x")), Complete(1)).IsError())
	assert.Equal(t, 0, calls)

	sum := compute(Complete(1), Complete(2))
	assert.Equal(t, 3, sum.MustValue())
	assert.Equal(t, 1, calls)

	failing := Derive([]Awaitable{Complete(1)}, func() (int, error) { return 0, errors.New("bad") })
	assert.EqualError(t, failing.Err(), "bad")
}

func TestMapAndFromCall(t *testing.T) {
	doubled := Map(Complete(4), func(v int) int { return v * 2 })
	assert.Equal(t, 8, doubled.MustValue())
	assert.True(t, Map(Pending[int](), func(v int) int { return v }).IsPending())

	assert.True(t, FromCall(0, errors.New("x")).IsError())
	assert.True(t, FromCall(3, nil).IsComplete())
}

func TestResultJSON(t *testing.T) {
	raw, err := json.Marshal(Complete([]string{"a"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"complete","value":["a"]}`, string(raw))

	raw, err = json.Marshal(Failed[int](errors.New("upstream down")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","error":"upstream down"}`, string(raw))

	raw, err = json.Marshal(Pending[int]())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"pending"}`, string(raw))
}
