// SPDX-License-Identifier: GPL-3.0-or-later

// Package config implements Capport's declarative YAML configuration
// layer (§6): loading and merging config directories, and building the
// registries, cell universe, and stage pipeline a [runner] executes
// (§9 "single dynamic dispatch point per task kind, with drivers
// registered by name" — this package is that dispatch point, composing
// the catalog entries it decodes with the [Drivers] a caller supplies at
// Build time, keeping the core engine free of any direct driver import).
package config

// Document is the merged configuration tree: the union, across every
// file in a config directory, of each recognized top-level kind
// (§6 "root is a mapping whose recognized top-level keys are the
// configurable kinds").
type Document struct {
	Pipelines   []PipelineSpec   `yaml:"pipeline"`
	Models      []ModelSpec      `yaml:"model"`
	Transforms  []TransformSpec  `yaml:"transform"`
	Sources     []SourceSpec     `yaml:"source"`
	Sinks       []SinkSpec       `yaml:"sink"`
	Connections []ConnectionSpec `yaml:"connection"`
	Loggers     []LoggerSpec     `yaml:"logger"`
	Runners     []RunnerSpec     `yaml:"runner"`
}

// PipelineSpec names an ordered sequence of stages (§3 Pipeline entity).
type PipelineSpec struct {
	Name   string      `yaml:"name"`
	Stages []StageSpec `yaml:"stages"`
}

// StageSpec is one pipeline stage (§3 Stage entity): a label, a kind, the
// name of the catalog entry it dispatches to (a TransformSpec, SourceSpec,
// or SinkSpec name), and the resolved argument map dependency inference
// runs against (§9 "document which argument keys are input-like and
// output-like").
//
// Uses is deliberately distinct from Label: the same named transform,
// source, or sink definition can be wired into more than one stage, each
// with its own cell bindings in Args, so the catalog entry's name cannot
// double as the dispatch key. The dispatch key config.Build registers
// every compiled Task under is always the stage's own Label, which
// [stage.Pipeline.Validate] already guarantees is unique within a
// pipeline.
type StageSpec struct {
	Label string         `yaml:"label"`
	Kind  string         `yaml:"kind"`
	Uses  string         `yaml:"uses"`
	Args  map[string]any `yaml:"args"`
	Every string         `yaml:"every"`
}

// ModelSpec is a named schema-plus-constraints contract (§3 Model entity).
type ModelSpec struct {
	Name   string           `yaml:"name"`
	Fields []ModelFieldSpec `yaml:"fields"`
}

// ModelFieldSpec is one entry of a ModelSpec's ordered field list.
type ModelFieldSpec struct {
	Name        string   `yaml:"name"`
	DType       string   `yaml:"dtype"`
	Constraints []string `yaml:"constraints"`
}

// TransformSpec is a named, reusable ops list a transform-kind stage
// compiles against its own input/output cell bindings (§4.3). It carries
// no cell names of its own — those live in the referencing stage's Args,
// so one TransformSpec can be reused by several stages wired to
// different cells.
type TransformSpec struct {
	Name string   `yaml:"name"`
	Ops  []OpSpec `yaml:"ops"`
}

// SourceSpec is a named source definition (§4.4): the driver kind to
// dispatch to, an optional connection/model reference, and driver-
// specific options passed through verbatim (§6 "the core promises only
// to pass through the declared model, the merge-type, and driver-
// specific options verbatim").
type SourceSpec struct {
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind"`
	Connection string         `yaml:"connection"`
	Model      string         `yaml:"model"`
	Options    map[string]any `yaml:"options"`
}

// SinkSpec is a named sink definition (§4.5).
type SinkSpec struct {
	Name                   string         `yaml:"name"`
	Kind                   string         `yaml:"kind"`
	Connection             string         `yaml:"connection"`
	Model                  string         `yaml:"model"`
	MergeType              string         `yaml:"merge_type"`
	Strict                 bool           `yaml:"strict"`
	CreateTableIfNotExists bool           `yaml:"create_table_if_not_exists"`
	OrderBy                []string       `yaml:"order_by"`
	PrimaryKey             []string       `yaml:"primary_key"`
	Options                map[string]any `yaml:"options"`
}

// ConnectionSpec is a named external-system credential/endpoint template
// (§3 Connection entity). Keys in Options ending in "_env_var" are
// resolved once at Build time against the supplied EnvRegistry (§9
// "treat uri_env_var/user_env_var as configuration values resolved once
// at pipeline build time against the EnvRegistry; do not read env vars
// inside driver hot paths") rather than carried through to the driver.
type ConnectionSpec struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	Options map[string]string `yaml:"options"`
}

// LoggerSpec is a named logger configuration (§3 Logger entity, §6
// persisted-state log path template).
type LoggerSpec struct {
	Name             string `yaml:"name"`
	Level            string `yaml:"level"`
	OutputPathPrefix string `yaml:"output_path_prefix"`
}

// RunnerSpec is a named runner configuration (§3 Runner spec entity):
// sync or async, and an optional schedule.
type RunnerSpec struct {
	Name     string        `yaml:"name"`
	Mode     string        `yaml:"mode"`
	Once     bool          `yaml:"once"`
	Schedule *ScheduleSpec `yaml:"schedule"`
}

// ScheduleSpec mirrors [schedule.Spec] in YAML-decodable form (§4.8).
type ScheduleSpec struct {
	Timezone       string `yaml:"timezone"`
	Every          string `yaml:"every"`
	At             string `yaml:"at"`
	RepeatingEvery string `yaml:"repeating_every"`
	Times          int    `yaml:"times"`
}
