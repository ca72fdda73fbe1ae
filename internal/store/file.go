package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// FileStore keeps files in a local directory.
type FileStore struct {
	dir string
	log *log.Logger
	now func() time.Time
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first save.
func NewFileStore(dir string, logger *log.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, &domain.ConfigurationError{Field: "output.dir", Reason: "output directory is empty"}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{dir: dir, log: logger.WithPrefix("store"), now: time.Now}, nil
}

// Dir returns the output directory.
func (s *FileStore) Dir() string { return s.dir }

// SaveAsset writes the asset's WAV bytes and returns the file path.
func (s *FileStore) SaveAsset(ctx context.Context, asset domain.AudioAsset) (string, error) {
	if len(asset.Data) == 0 {
		return "", errors.New("asset has no data")
	}
	return s.write(ctx, AssetName(asset), asset.Data)
}

// SaveScript writes s and returns the file path.
func (s *FileStore) SaveScript(ctx context.Context, sc domain.Script, name string) (string, error) {
	data, err := encodeScript(sc)
	if err != nil {
		return "", err
	}
	return s.write(ctx, ScriptName(name, s.now()), data)
}

// LoadScript reads a script by path. Relative refs are looked up in the
// output directory first, then in the working directory.
func (s *FileStore) LoadScript(ctx context.Context, ref string) (domain.Script, error) {
	if err := ctx.Err(); err != nil {
		return domain.Script{}, err
	}

	p := s.resolve(ref)
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Script{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return domain.Script{}, fmt.Errorf("failed to read script: %w", err)
	}
	return decodeScript(p, data)
}

// storedPatterns are the file names List considers.
var storedPatterns = []string{"*.wav", "*.txt"}

// List returns the stored files under the output directory, including
// subdirectories, newest first. A missing directory is an empty store.
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	// The output directory is not a repository, so .gitignore rules are
	// not applied.
	found, err := gitcha.FindAllFiles(root, storedPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var entries []Entry
	for res := range found {
		kind, ok := classify(res.Path)
		if !ok || res.Info == nil {
			continue
		}
		name, err := filepath.Rel(root, res.Path)
		if err != nil {
			name = filepath.Base(res.Path)
		}
		entries = append(entries, Entry{
			Ref:     res.Path,
			Name:    filepath.ToSlash(name),
			Kind:    kind,
			Size:    res.Info.Size(),
			ModTime: res.Info.ModTime(),
		})
	}
	s.log.Debug("Listed output directory", "dir", root, "entries", len(entries))
	sortEntries(entries)
	return entries, nil
}

func (s *FileStore) resolve(ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	inDir := filepath.Join(s.dir, ref)
	if _, err := os.Stat(inDir); err == nil {
		return inDir
	}
	return ref
}

func (s *FileStore) write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	p := filepath.Join(s.dir, name)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	s.log.Debug("Saved file", "path", p, "bytes", len(data))
	return p, nil
}
