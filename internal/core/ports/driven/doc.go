// Package driven defines the interfaces that core calls OUT to
// infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Generates vector embeddings for chunks and queries
//   - VectorIndex: Stores vectors and answers nearest-neighbour searches
//   - DocumentStore: Document and chunk persistence
//   - CompletionService: External LLM completion and summarisation
//
// # Optional Interfaces
//
//   - TextExtractor: Turns uploaded bytes into plain text; only needed
//     when ingesting raw files rather than pre-extracted text
//   - CostSink: Durable destination for cost records; when nil, records
//     live only in the in-memory aggregates
//   - TemplateStore: User-overridable prompt instruction text
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
