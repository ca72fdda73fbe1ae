// Package store persists finished audio and scripts.
package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/script"
)

// ErrNotFound is returned when a ref names nothing in the store.
var ErrNotFound = errors.New("not found in store")

const (
	filePrefix   = "asmr_"
	scriptPrefix = "asmr_script_"
	stampLayout  = "20060102_150405"
)

// EntryKind tells audio from scripts.
type EntryKind int

const (
	EntryAudio EntryKind = iota
	EntryScript
)

func (k EntryKind) String() string {
	if k == EntryScript {
		return "script"
	}
	return "audio"
}

// Entry describes one stored object.
type Entry struct {
	// Ref loads or plays the object: a path for local files, an s3:// URL
	// for buckets.
	Ref     string
	Name    string
	Kind    EntryKind
	Size    int64
	ModTime time.Time
}

// Store saves and lists generated files.
type Store interface {
	SaveAsset(ctx context.Context, asset domain.AudioAsset) (string, error)
	SaveScript(ctx context.Context, s domain.Script, name string) (string, error)
	LoadScript(ctx context.Context, ref string) (domain.Script, error)
	List(ctx context.Context) ([]Entry, error)
}

// Stem identifies an asset in file names: its creation time and the first
// eight characters of its ID. Partial assets are marked.
func Stem(a domain.AudioAsset) string {
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	id := a.ID
	if len(id) > 8 {
		id = id[:8]
	}

	stem := created.Format(stampLayout)
	if id != "" {
		stem += "_" + id
	}
	if a.Partial {
		stem += "_partial"
	}
	return stem
}

// AssetName returns the file name of an asset.
func AssetName(a domain.AudioAsset) string {
	return filePrefix + Stem(a) + ".wav"
}

// ScriptName returns the file name of a script. An empty name is replaced
// by the current time.
func ScriptName(name string, now time.Time) string {
	name = sanitize(name)
	if name == "" {
		name = now.Format(stampLayout)
	}
	return scriptPrefix + name + ".txt"
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".txt")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		default:
			return -1
		}
	}, name)
}

// classify reports the kind of a stored object from its base name.
func classify(name string) (EntryKind, bool) {
	base := path.Base(name)
	switch {
	case strings.HasPrefix(base, scriptPrefix) && strings.HasSuffix(base, ".txt"):
		return EntryScript, true
	case strings.HasPrefix(base, filePrefix) && strings.HasSuffix(base, ".wav"):
		return EntryAudio, true
	default:
		return 0, false
	}
}

// encodeScript writes s in the "Label: text" format the manual parser reads.
func encodeScript(s domain.Script) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return []byte(s.String() + "\n"), nil
}

func decodeScript(ref string, data []byte) (domain.Script, error) {
	s, err := script.ParseManual(string(data))
	if err != nil {
		return domain.Script{}, fmt.Errorf("failed to parse script %s: %w", ref, err)
	}
	return s, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].ModTime.After(entries[j].ModTime)
		}
		return entries[i].Name < entries[j].Name
	})
}
