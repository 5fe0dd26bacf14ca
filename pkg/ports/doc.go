// Package ports defines the driven-side interfaces of the engine:
// checkpoint persistence, distributed locking, and the external
// collaborators (classifier, document retrieval, text generation).
// Adapters implement these; the engine depends only on the contracts.
package ports
