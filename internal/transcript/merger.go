package transcript

import (
	"strings"
	"sync"

	"github.com/skypro1111/live-transcriber/internal/transcription"
)

// Merger stitches consecutive overlapping chunk transcriptions into a
// non-redundant output stream. It keeps the previous chunk's full word list,
// compares the normalized overlap regions, and trims the duplicated prefix
// off each new chunk. State is owned by the single processing goroutine;
// the mutex only guards the stats snapshot.
type Merger struct {
	overlap  float64 // seconds of window overlap
	minMatch int     // common run must be longer than this to count

	prev           []transcription.Word
	lastEmittedEnd float64

	// Statistics
	chunksMerged  uint64
	wordsEmitted  uint64
	overlapsFound uint64
	emptyChunks   uint64

	mu sync.RWMutex
}

// MergerStats represents merger statistics
type MergerStats struct {
	ChunksMerged   uint64  `json:"chunks_merged"`
	WordsEmitted   uint64  `json:"words_emitted"`
	OverlapsFound  uint64  `json:"overlaps_found"`
	EmptyChunks    uint64  `json:"empty_chunks"`
	LastEmittedEnd float64 `json:"last_emitted_end"`
}

// NewMerger creates a merger for the given window overlap. A common token
// run is accepted as a genuine overlap only when it is strictly longer than
// minMatch tokens.
func NewMerger(overlapSeconds float64, minMatch int) *Merger {
	return &Merger{
		overlap:  overlapSeconds,
		minMatch: minMatch,
	}
}

// Merge determines which words of the current chunk are genuinely new and
// returns exactly those, in order. The previous word list is always replaced
// with the full current list — the next comparison uses the immediately
// preceding chunk's complete transcription, not the already-emitted subset.
//
// An empty current list emits nothing but still overwrites the previous
// words, so the next chunk behaves as if it were the first one.
func (m *Merger) Merge(current []transcription.Word) []transcription.Word {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunksMerged++

	if len(current) == 0 {
		m.emptyChunks++
		m.prev = nil
		return nil
	}

	trim := 0
	if len(m.prev) > 0 {
		trim = m.trimIndex(current)
	}

	emitted := current[trim:]
	if len(emitted) > 0 {
		m.lastEmittedEnd = emitted[len(emitted)-1].End
		m.wordsEmitted += uint64(len(emitted))
	}

	m.prev = current

	return emitted
}

// trimIndex finds how many leading words of the current chunk repeat the
// tail of the previous chunk. Caller must hold the lock.
func (m *Merger) trimIndex(current []transcription.Word) int {
	// Overlap candidates: tail of the previous chunk by end time...
	tailCutoff := m.prev[len(m.prev)-1].End - m.overlap
	prevTokens := make([]string, 0, len(m.prev))
	for _, w := range m.prev {
		if w.End > tailCutoff {
			prevTokens = append(prevTokens, normalize(w.Text))
		}
	}

	// ...against the head of the current chunk by start time. Words are
	// chronological, so the candidates form a prefix of the current list
	// and indices into it are indices into current.
	currTokens := make([]string, 0, len(current))
	for _, w := range current {
		if w.Start >= m.overlap {
			break
		}
		currTokens = append(currTokens, normalize(w.Text))
	}

	size, start := longestCommonRun(prevTokens, currTokens)
	if size <= m.minMatch {
		// No qualifying overlap: emit the full chunk
		return 0
	}

	m.overlapsFound++

	return start + size
}

// longestCommonRun finds the longest contiguous run of tokens common to a
// and b. Returns the run length and its starting index in b; among
// equal-length maxima the leftmost run wins.
func longestCommonRun(a, b []string) (size, bStart int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}

	// runs[j] is the length of the common run ending at a[i-1], b[j-1].
	// Strict > keeps the first maximal run found, which with this scan
	// order is the leftmost one.
	runs := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		prevDiag := 0
		for j := 1; j <= len(b); j++ {
			cur := runs[j]

			if a[i-1] == b[j-1] {
				runs[j] = prevDiag + 1
				if runs[j] > size {
					size = runs[j]
					bStart = j - runs[j]
				}
			} else {
				runs[j] = 0
			}

			prevDiag = cur
		}
	}

	return size, bStart
}

// normalize prepares a word for comparison only; emitted text is never
// altered by normalization.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// LastEmittedEnd returns the chunk-relative end time of the last emitted word
func (m *Merger) LastEmittedEnd() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastEmittedEnd
}

// GetStats returns current merger statistics
func (m *Merger) GetStats() MergerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MergerStats{
		ChunksMerged:   m.chunksMerged,
		WordsEmitted:   m.wordsEmitted,
		OverlapsFound:  m.overlapsFound,
		EmptyChunks:    m.emptyChunks,
		LastEmittedEnd: m.lastEmittedEnd,
	}
}
