// Package aiconnector is a configuration-driven, event-streaming integration
// runtime. An operator declares one or more applications, each composed of
// flows of chained components that consume events from a pub/sub broker (or
// other inputs), transform them, optionally invoke remote services, and
// publish results.
//
// # Architecture
//
// The runtime is organized in three layers:
//
//	┌─────────────────────────────────────┐
//	│          Connector                  │  Config parsing, app construction,
//	│  (start, stop, error flow)          │  shared timer and cache services
//	└─────────────────────────────────────┘
//	           ↓ orchestrates
//	┌─────────────────────────────────────┐
//	│       Apps and Flows                │  Component groups connected by
//	│  (standard and simplified mode)     │  bounded queues
//	└─────────────────────────────────────┘
//	           ↓ run
//	┌─────────────────────────────────────┐
//	│         Components                  │  Inputs, processors, outputs,
//	│  (worker loop, transforms, invoke)  │  broker request/reply
//	└─────────────────────────────────────┘
//
// Messages move through a flow inside bounded queues; backpressure is
// enforced solely by queue capacity. Every message accepted by a broker
// input is settled exactly once: either its acknowledgement callbacks or
// its negative-acknowledgement callbacks fire, never both.
//
// # Package Layout
//
//   - config: YAML document merging, env substitution, invoke resolution
//   - expression: data-plane expressions and template rendering
//   - message: the in-flight envelope and queue events
//   - transform: declarative copy/append/map/reduce/filter operators
//   - component: registry, dependencies, and the worker runtime
//   - flow, app: pipeline wiring and grouping
//   - broker, messaging: broker input/output and request/reply
//   - timer, cache: services available to all components
//   - connector: top-level orchestration
package aiconnector
