// Package domain defines the core business entities for the knowledge
// copilot pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Document: An uploaded document after text extraction
//   - Chunk: The unit of embedding and retrieval
//   - IndexEntry: The unit stored in the vector index
//   - RetrievalResult: A relevance-ordered set of matches with an outcome
//   - ConversationTurn: One entry in an append-only conversation
//   - CostRecord: An accounting entry for one request
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library, plus shopspring/decimal as a value type
//   - Cannot Import: Any internal/ package
package domain
