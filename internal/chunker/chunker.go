// Package chunker splits document text into overlapping, sentence-aware
// segments for embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/tokens"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 50

// Chunker accumulates whole sentences into chunks of at most chunkSize
// characters, seeding each new chunk with the trailing overlap of the
// previous one. Sizes are measured in runes.
//
// The core spans (Start/End) of the produced chunks partition the input
// exactly: concatenating text[Start:End] over all chunks reconstructs
// the document with no character loss.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a chunker. Overlap must be smaller than the chunk size;
// violations are a configuration error at construction, not per call.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", domain.ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must not be negative", domain.ErrInvalidConfig, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", domain.ErrInvalidConfig, overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the configured chunk size in characters.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// sentence is a segment of the input ending just after a terminator.
// Offsets are rune positions into the document text.
type sentence struct {
	text  string
	start int
	end   int
}

// Chunk splits text into chunks for the given document. Empty input
// yields zero chunks. A single sentence longer than the chunk size is
// emitted whole: content is never dropped, precision degrades instead.
func (c *Chunker) Chunk(documentID, text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	sentences := splitSentences(runes)

	var chunks []domain.Chunk

	// buf holds the sentences of the chunk being assembled; leading
	// entries may be overlap seed carried over from the previous chunk.
	var buf []sentence
	bufLen := 0
	coreStart := 0

	emit := func(coreEnd int) {
		var sb strings.Builder
		for i := range buf {
			sb.WriteString(buf[i].text)
		}
		content := sb.String()
		chunks = append(chunks, domain.Chunk{
			ID:            fmt.Sprintf("%s:%d", documentID, len(chunks)),
			DocumentID:    documentID,
			Content:       content,
			Position:      len(chunks),
			Start:         coreStart,
			End:           coreEnd,
			TokenEstimate: tokens.Estimate(content),
		})
	}

	for _, s := range sentences {
		sLen := s.end - s.start
		if bufLen > 0 && bufLen+sLen > c.chunkSize {
			emit(s.start)

			// Seed the next buffer with the trailing overlap of the
			// chunk just emitted, capped so the seed plus the incoming
			// sentence still fits in one chunk.
			maxSeed := c.overlap
			if rem := c.chunkSize - sLen; rem < maxSeed {
				maxSeed = rem
			}
			buf, bufLen = seedFrom(buf, maxSeed)
			coreStart = s.start
		}
		buf = append(buf, s)
		bufLen += sLen
	}

	if bufLen > 0 {
		emit(len(runes))
	}

	return chunks
}

// seedFrom returns the trailing sentences of buf whose combined length
// fits within maxSeed. Whole sentences are preferred; only when not
// even the last sentence fits is it split to produce the seed.
func seedFrom(buf []sentence, maxSeed int) ([]sentence, int) {
	if maxSeed <= 0 || len(buf) == 0 {
		return nil, 0
	}

	total := 0
	i := len(buf)
	for i > 0 {
		l := buf[i-1].end - buf[i-1].start
		if total+l > maxSeed {
			break
		}
		total += l
		i--
	}

	if i == len(buf) {
		// Not even one whole sentence fits; split the last one.
		last := buf[len(buf)-1]
		r := []rune(last.text)
		if maxSeed > len(r) {
			maxSeed = len(r)
		}
		cut := sentence{
			text:  string(r[len(r)-maxSeed:]),
			start: last.end - maxSeed,
			end:   last.end,
		}
		return []sentence{cut}, maxSeed
	}

	seed := make([]sentence, len(buf)-i)
	copy(seed, buf[i:])
	return seed, total
}

// splitSentences partitions runes into segments, each ending just after
// a run of sentence terminators. Any trailing text without a terminator
// becomes the final segment. The segments cover the input exactly.
func splitSentences(runes []rune) []sentence {
	var out []sentence
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		for i+1 < len(runes) && isTerminator(runes[i+1]) {
			i++
		}
		out = append(out, sentence{text: string(runes[start : i+1]), start: start, end: i + 1})
		start = i + 1
	}
	if start < len(runes) {
		out = append(out, sentence{text: string(runes[start:]), start: start, end: len(runes)})
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
