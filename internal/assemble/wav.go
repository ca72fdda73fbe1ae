package assemble

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// HeaderSize is the length of the canonical PCM WAV header written by
// EncodeWAV.
const HeaderSize = 44

const formatPCM = 1

var (
	ErrNotWAV          = errors.New("not a RIFF/WAVE file")
	ErrUnsupportedWAV  = errors.New("only 16-bit PCM WAV is supported")
	ErrTruncatedHeader = errors.New("truncated WAV header")
)

// EncodeWAV wraps pcm in a 44-byte RIFF/WAVE header describing f.
func EncodeWAV(pcm []byte, f domain.AudioFormat) []byte {
	buf := make([]byte, HeaderSize, HeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], formatPCM)
	le.PutUint16(buf[22:24], uint16(f.Channels))
	le.PutUint32(buf[24:28], uint32(f.SampleRate))
	le.PutUint32(buf[28:32], uint32(f.ByteRate()))
	le.PutUint16(buf[32:34], uint16(f.FrameSize()))
	le.PutUint16(buf[34:36], uint16(f.BitDepth))

	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(len(pcm)))

	return append(buf, pcm...)
}

// DecodeWAV returns the PCM payload and format of a WAV file. Chunks other
// than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) ([]byte, domain.AudioFormat, error) {
	var f domain.AudioFormat
	if len(data) < 12 {
		return nil, f, ErrTruncatedHeader
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, f, ErrNotWAV
	}

	le := binary.LittleEndian
	haveFmt := false
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(le.Uint32(data[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, f, ErrTruncatedHeader
			}
			if le.Uint16(data[body:]) != formatPCM {
				return nil, f, ErrUnsupportedWAV
			}
			f.Channels = int(le.Uint16(data[body+2:]))
			f.SampleRate = int(le.Uint32(data[body+4:]))
			f.BitDepth = int(le.Uint16(data[body+14:]))
			if f.BitDepth != 16 || f.Channels < 1 || f.SampleRate <= 0 {
				return nil, f, ErrUnsupportedWAV
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, f, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}
			end := body + size
			if end > len(data) {
				end = len(data)
			}
			pcm := data[body:end]
			return pcm[:len(pcm)-len(pcm)%f.FrameSize()], f, nil
		}

		// Chunks are padded to even sizes.
		off = body + size + size%2
	}
	return nil, f, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}
