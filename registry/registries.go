// SPDX-License-Identifier: GPL-3.0-or-later

package registry

import "github.com/capport-dev/capport/internal/capplog"

// Registries bundles every name → value dictionary a pipeline build
// produces (§2 Registries component). A capctx.Context carries one
// *Registries per run; it is built once from a parsed config.Document and
// never mutated after the run starts.
type Registries struct {
	Models      *Registry[Model]
	Transforms  *Registry[CompiledTransform]
	Connections *Registry[Connection]
	Loggers     *Registry[capplog.Logger]
	Tasks       *Registry[Task]
}

// CompiledTransform is the narrow view Registries needs of a compiled
// transform — just enough to dispatch it as a [Task] without registry
// importing package transform (which would create transform → registry →
// transform if transform ever needed to resolve a Model by name; instead
// transform takes the Model it needs as a direct argument at compile
// time, see DESIGN.md).
type CompiledTransform interface {
	// AsTask adapts the compiled transform to the Task dispatch
	// signature, so the runner can invoke it through Registries.Tasks
	// like any other task.
	AsTask() Task
}

// NewRegistries builds an empty set of registries, ready for config-load
// time registration.
func NewRegistries() *Registries {
	return &Registries{
		Models:      New[Model]("model"),
		Transforms:  New[CompiledTransform]("transform"),
		Connections: New[Connection]("connection"),
		Loggers:     New[capplog.Logger]("logger"),
		Tasks:       New[Task]("task"),
	}
}
