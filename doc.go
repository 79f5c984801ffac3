// SPDX-License-Identifier: GPL-3.0-or-later

// Package capport provides a configuration-driven data-movement engine.
//
// # Core Abstraction
//
// Operators write declarative YAML documents describing a pipeline of
// named stages — each stage a source (ingest), transform (in-memory
// relational rewrite), or sink (emit). The engine executes them,
// coordinating tabular data in a shared in-memory universe of named,
// read/write-locked [frame.Frame] values and scheduling work either as a
// one-shot linear run or as an async long-running loop in which each
// stage reacts to updates of its inputs.
//
// # Components
//
//   - [frame.Frame] / the algebra in package frame: an opaque, immutable
//     typed columnar value (project, with_columns, drop, rename, join,
//     unnest, filter, time_parse, uniform_id_type).
//   - [universe.Cell] / [universe.Universe]: a named, lockable slot holding
//     the latest Frame plus a bounded fan-out of update notifications.
//   - [registry.Registries]: name → value dictionaries for Models,
//     Transforms, Connections, Loggers and the task dispatch table.
//   - [transform]: the select/join/drop/format/concat DSL compiler.
//   - [stage.Stage] / [stage.Pipeline]: a labelled unit binding a task to
//     its resolved arguments, and the ordered pipeline of such units with
//     an inferred dependency graph.
//   - [runner.Sync] / [runner.Async]: the two execution strategies —
//     linear synchronous, and update-driven concurrent.
//   - [envreg.Registry]: the process-scoped CONFIG_DIR / OUTPUT_DIR /
//     REF_DATE / EXECUTE_MODE environment for one pipeline run.
//   - [capctx.Context]: the handle each task receives, exposing the
//     Universe, Registries, EnvRegistry, a logger and the stage's
//     resolved argument map.
//
// Source/sink connectors (CSV, JSON, HTTP, SQL, ClickHouse, MongoDB),
// YAML parsing, cron parsing and the CLI entry point are external
// collaborators reached through the narrow interfaces in package
// registry; package capport wires a default set of them (see the
// driver, config, schedule and cmd/capport packages) but the core engine
// never imports a specific connector.
//
// # Build and run
//
// [Build] loads registries from a parsed [config.Document] and produces a
// runnable [Engine]; [Engine.RunOnce] executes a pipeline's stages once in
// declaration order, and [Engine.RunLoop] runs it as an update-driven
// async loop until its context is cancelled.
package capport
