package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

var DefaultExtensions = []string{".epub", ".pdf", ".txt"}

// Scanner walks a library directory for book files.
type Scanner struct {
	extensions map[string]struct{}
}

func NewScanner(extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &Scanner{extensions: set}
}

// Scan returns absolute paths of supported files under root that are not in known,
// in walk order. A missing root is a configuration error and yields no paths.
// A symlinked root is followed, but paths keep the root as given so catalog keys
// do not change when the link target moves.
func (s *Scanner) Scan(ctx context.Context, root string, known map[string]struct{}) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "resolve library path", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "scan library", err)
	}
	if !info.IsDir() {
		return nil, domain.WrapError(domain.ErrConfiguration, "scan library", fmt.Errorf("%s is not a directory", absRoot))
	}

	walkRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "resolve library path", err)
	}

	var found []string
	err = filepath.WalkDir(walkRoot, func(walked string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := underRoot(absRoot, walkRoot, walked)
		if err != nil {
			return err
		}
		if walkErr != nil {
			if walked == walkRoot {
				return walkErr
			}
			// Unreadable subtrees are skipped; the rest of the library is still scanned.
			slog.Warn("library_walk_skipped", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !s.supported(path) {
			return nil
		}
		if _, ok := known[path]; ok {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrConfiguration, "scan library", err)
	}
	return found, nil
}

// underRoot rewrites a path found under walkRoot to the same path under root.
func underRoot(root, walkRoot, walked string) (string, error) {
	if root == walkRoot {
		return walked, nil
	}
	rel, err := filepath.Rel(walkRoot, walked)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

func (s *Scanner) supported(path string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
