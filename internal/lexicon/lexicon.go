package lexicon

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"lakeguide/internal/types"
)

// Lexicon bundles the normalizer and classifier over one table set and
// supports atomically swapping in reloaded tables.
type Lexicon struct {
	mu         sync.RWMutex
	normalizer *Normalizer
	classifier *Classifier
	threshold  int

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open loads the lexicon from path, or the embedded defaults when path is
// empty.
func Open(path string, threshold int) (*Lexicon, error) {
	tables, err := loadFrom(path)
	if err != nil {
		return nil, err
	}
	return &Lexicon{
		normalizer: NewNormalizer(tables, threshold),
		classifier: NewClassifier(tables),
		threshold:  threshold,
	}, nil
}

func loadFrom(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return LoadTables(data)
}

// Normalize maps a raw name to its canonical category.
func (l *Lexicon) Normalize(raw string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.normalizer.Normalize(raw)
}

// ExpandGroup resolves a group alias to member categories.
func (l *Lexicon) ExpandGroup(raw string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.normalizer.ExpandGroup(raw)
}

// ShouldForward reports whether a name may be used as a backend filter.
func (l *Lexicon) ShouldForward(raw string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.normalizer.ShouldForward(raw)
}

// MatchCanonical resolves a mention to an exact canonical object name.
func (l *Lexicon) MatchCanonical(raw string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.normalizer.MatchCanonical(raw)
}

// Classify extracts attributes from qualifier phrases.
func (l *Lexicon) Classify(phrases []string) (types.Attributes, []string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.classifier.Classify(phrases)
}

// Watch reloads the tables whenever the file at path changes. Reload
// failures keep the previous tables; a broken edit never takes the
// normalizer down.
func (l *Lexicon) Watch(path string, logger *zap.Logger) error {
	if path == "" {
		return fmt.Errorf("lexicon watch requires a file path")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create lexicon watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch lexicon %s: %w", path, err)
	}

	l.watcher = watcher
	l.done = make(chan struct{})

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				tables, err := loadFrom(path)
				if err != nil {
					logger.Warn("lexicon reload failed, keeping previous tables",
						zap.String("path", path), zap.Error(err))
					continue
				}
				l.mu.Lock()
				l.normalizer = NewNormalizer(tables, l.threshold)
				l.classifier = NewClassifier(tables)
				l.mu.Unlock()
				logger.Info("lexicon reloaded", zap.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("lexicon watcher error", zap.Error(err))
			case <-l.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher, if any.
func (l *Lexicon) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	return l.watcher.Close()
}
