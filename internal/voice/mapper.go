// Package voice assigns synthesis voices to script speakers.
package voice

import (
	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// Mapper resolves speaker labels against a fixed default pool.
type Mapper struct {
	pool []domain.VoiceID
}

// NewMapper creates a mapper over pool. The pool is copied.
func NewMapper(pool []domain.VoiceID) *Mapper {
	return &Mapper{pool: append([]domain.VoiceID(nil), pool...)}
}

// Resolve maps every speaker of s to a voice. Speakers are visited in
// first-occurrence order. An override wins; otherwise the speaker gets the
// next pool voice not already taken in this script, and once every pool
// voice is taken the pool is reused round-robin. The result depends only on
// s, overrides and the pool.
func (m *Mapper) Resolve(s domain.Script, overrides domain.VoiceMap) (domain.VoiceMap, error) {
	speakers := s.Speakers()
	out := make(domain.VoiceMap, len(speakers))

	taken := make(map[domain.VoiceID]bool, len(speakers))
	for _, sp := range speakers {
		if v, ok := overrides[sp]; ok && v != "" {
			out[sp] = v
			taken[v] = true
		}
	}

	cursor := 0
	for _, sp := range speakers {
		if _, ok := out[sp]; ok {
			continue
		}
		if len(m.pool) == 0 {
			return nil, &domain.VoiceExhaustionError{Speaker: sp}
		}

		v, next := m.nextFree(cursor, taken)
		out[sp] = v
		taken[v] = true
		cursor = next
	}

	return out, nil
}

// nextFree scans the pool from cursor for a voice not yet taken. When all
// are taken it returns the voice at cursor.
func (m *Mapper) nextFree(cursor int, taken map[domain.VoiceID]bool) (domain.VoiceID, int) {
	n := len(m.pool)
	for i := 0; i < n; i++ {
		idx := (cursor + i) % n
		if !taken[m.pool[idx]] {
			return m.pool[idx], idx + 1
		}
	}
	idx := cursor % n
	return m.pool[idx], idx + 1
}
