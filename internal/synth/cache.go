package synth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// Cache stores converted segment audio between runs.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// CacheKey identifies one synthesized unit. Audio is cached after format
// conversion, so the session format is part of the key.
func CacheKey(provider string, voice domain.VoiceID, text string, format domain.AudioFormat) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", provider, voice, format, text)
	return hex.EncodeToString(h.Sum(nil)[:16])
}
