// Package domain contains the core types of the Lattice workflow engine:
// the declarative graph definition (activities and connections), the
// per-conversation state that flows through the step loop, and the
// lifecycle events used for observability.
//
// The package is dependency-free by design. Adapters (HTTP, Redis, Neo4j)
// and the engine all converge on these types.
package domain
