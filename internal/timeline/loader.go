package timeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileSuffix = "_landmarks.json"

// FileLoader loads timelines stored as "<sign>_landmarks.json" in Dir.
type FileLoader struct {
	Dir string
}

// LoadTimeline reads and validates the recording for sign.
func (l FileLoader) LoadTimeline(ctx context.Context, sign string) (*Timeline, error) {
	key, err := CanonicalSign(sign)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	defer f.Close()

	tl, err := Decode(f, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return tl, nil
}

// Save writes tl under its canonical sign name.
func (l FileLoader) Save(tl *Timeline) error {
	key, err := CanonicalSign(tl.Sign)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return fmt.Errorf("create timeline dir: %w", err)
	}

	f, err := os.Create(l.path(key))
	if err != nil {
		return fmt.Errorf("create %s: %w", key, err)
	}
	if err := Encode(f, tl); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns the sign names available in Dir, sorted.
func (l FileLoader) List() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}

	var signs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		signs = append(signs, strings.TrimSuffix(e.Name(), fileSuffix))
	}
	sort.Strings(signs)
	return signs, nil
}

func (l FileLoader) path(key string) string {
	return filepath.Join(l.Dir, key+fileSuffix)
}
