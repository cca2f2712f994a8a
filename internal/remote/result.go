// Package remote models asynchronously loaded values. A Result is pending until its
// producer completes, then holds either a value or an error. Derived results declare the
// results they await and are computed only once all of them are complete.
package remote

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a Result.
type Status int

const (
	StatusPending Status = iota
	StatusComplete
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalJSON encodes the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Awaitable is anything a derived result can wait on.
type Awaitable interface {
	Status() Status
	Err() error
}

// Result is an immutable snapshot of one asynchronous value. The zero value is pending.
type Result[T any] struct {
	status Status
	value  T
	err    error
}

// Pending returns a result that has not completed yet.
func Pending[T any]() Result[T] {
	return Result[T]{status: StatusPending}
}

// Complete returns a completed result holding value.
func Complete[T any](value T) Result[T] {
	return Result[T]{status: StatusComplete, value: value}
}

// Failed returns an errored result.
func Failed[T any](err error) Result[T] {
	return Result[T]{status: StatusError, err: err}
}

func (r Result[T]) Status() Status   { return r.status }
func (r Result[T]) Err() error       { return r.err }
func (r Result[T]) IsPending() bool  { return r.status == StatusPending }
func (r Result[T]) IsComplete() bool { return r.status == StatusComplete }
func (r Result[T]) IsError() bool    { return r.status == StatusError }

// Value returns the value and whether the result is complete.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.status == StatusComplete
}

// ValueOr returns the value when complete and def otherwise.
func (r Result[T]) ValueOr(def T) T {
	if r.status == StatusComplete {
		return r.value
	}
	return def
}

// MustValue returns the value of a complete result. It panics otherwise; callers use it only
// inside Derive after the result was awaited.
func (r Result[T]) MustValue() T {
	if r.status != StatusComplete {
		panic(fmt.Sprintf("remote: value read from %s result", r.status))
	}
	return r.value
}

type resultJSON[T any] struct {
	Status Status `json:"status"`
	Value  *T     `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MarshalJSON encodes the status alongside the value or error message.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	out := resultJSON[T]{Status: r.status}
	switch r.status {
	case StatusComplete:
		v := r.value
		out.Value = &v
	case StatusError:
		out.Error = r.err.Error()
	}
	return json.Marshal(out)
}

// Await folds the statuses of deps: the first error wins, then any pending dependency keeps
// the fold pending.
func Await(deps ...Awaitable) (Status, error) {
	pending := false
	for _, d := range deps {
		switch d.Status() {
		case StatusError:
			return StatusError, d.Err()
		case StatusPending:
			pending = true
		}
	}
	if pending {
		return StatusPending, nil
	}
	return StatusComplete, nil
}

// Derive computes a result from its await set. compute runs only when every dependency is
// complete, so it may call MustValue on them. An error from compute fails the result.
func Derive[T any](deps []Awaitable, compute func() (T, error)) Result[T] {
	status, err := Await(deps...)
	switch status {
	case StatusError:
		return Failed[T](err)
	case StatusPending:
		return Pending[T]()
	}
	value, err := compute()
	if err != nil {
		return Failed[T](err)
	}
	return Complete(value)
}

// Map transforms the value of a complete result and passes other states through.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	switch r.status {
	case StatusComplete:
		return Complete(fn(r.value))
	case StatusError:
		return Failed[U](r.err)
	}
	return Pending[U]()
}

// FromCall wraps the outcome of a blocking call.
func FromCall[T any](value T, err error) Result[T] {
	if err != nil {
		return Failed[T](err)
	}
	return Complete(value)
}
