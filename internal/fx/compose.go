// SPDX-License-Identifier: GPL-3.0-or-later

package fx

import "context"

// Pipe folds a dynamic list of same-typed [Func] steps over input, left to
// right, short-circuiting on the first error.
//
// Transform stages compile to a runtime-determined number of steps (one
// per YAML operation), so arity is not known at compile time; this is the
// dynamic analogue of chaining Func[A,B] instances pairwise.
func Pipe[T any](ctx context.Context, input T, steps ...Func[T, T]) (T, error) {
	cur := input
	for _, step := range steps {
		res, err := step.Call(ctx, cur)
		if err != nil {
			var zero T
			return zero, err
		}
		cur = res
	}
	return cur, nil
}

// Apply binds a fixed input to a [Func], returning a [Func] that takes [Unit] instead.
//
// Apply lets a Func that already has a concrete argument be used wherever
// a Func[Unit, B] is expected.
func Apply[A, B any](fn Func[A, B], input A) Func[Unit, B] {
	return &apply[A, B]{fn, input}
}

type apply[A, B any] struct {
	fn    Func[A, B]
	input A
}

func (b *apply[A, B]) Call(ctx context.Context, _ Unit) (B, error) {
	return b.fn.Call(ctx, b.input)
}

// ConstFunc returns a [Func] that always returns the given value.
func ConstFunc[B any](value B) Func[Unit, B] {
	return &constFunc[B]{value}
}

type constFunc[B any] struct {
	value B
}

func (c *constFunc[B]) Call(ctx context.Context, _ Unit) (B, error) {
	return c.value, nil
}
