// Package vm implements the stackvm execution engine.
//
// This package contains:
//   - Engine: the fetch/dispatch loop, fault handling and host hooks
//   - Context: invocation frames with their slots and try stacks
//   - EvaluationStack and Slot: reference-counted item storage
//   - ReferenceCounter: stack accounting and cycle collection
//   - Debugger, Profiler and Inspector: tooling built on the engine
package vm
