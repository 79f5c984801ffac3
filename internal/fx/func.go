// SPDX-License-Identifier: GPL-3.0-or-later

// Package fx provides a small generic Func/Pipe abstraction used to fold a
// dynamic, runtime-determined list of operations over a value, short
// circuiting on the first error. The transform compiler uses it to apply a
// stage's compiled operations to a working Frame.
package fx

import "context"

// Func is a generic operation that accepts an input and returns a result.
//
// Func instances can be folded with [Pipe] to build a pipeline where the
// output of one operation flows to the input of the next.
//
// Resource cleanup contract: when a Func receives a closeable resource as
// input and returns an error, it is responsible for closing that resource
// before returning, so that a Pipe does not leak resources on partial
// failure.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a function as a [Func] implementation.
//
// Use this to create ad-hoc [Func] instances from closures when you need
// custom behavior that doesn't fit the existing primitives.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
