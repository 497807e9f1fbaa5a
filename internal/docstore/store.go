// internal/docstore/store.go
package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formpilot/internal/config"
)

// Store holds the operator's reference documents: profile facts, answers to
// common screening questions, and the files (resume, cover letter) that get
// uploaded into applications. Documents are read once from the configured
// input directory; nothing outside that directory is ever opened.
type Store struct {
	dir    string
	logger *zap.Logger

	mu     sync.RWMutex
	fields map[string]string // normalized key -> value
	files  map[string]string // base name -> absolute path
}

func NewStore(cfg config.DocsConfig, logger *zap.Logger) *Store {
	return &Store{
		dir:    cfg.InputDir,
		logger: logger.Named("docstore"),
		fields: make(map[string]string),
		files:  make(map[string]string),
	}
}

// Load reads every supported document under the input directory. Text and
// markdown files are parsed for "Key: Value" fact lines; PDFs have their
// text extracted first. Other files are indexed by name for uploads.
func (s *Store) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read documents directory: %w", err)
	}

	type document struct {
		name string
		path string
		text string
	}

	var docs []*document
	paths := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path, err := s.resolve(entry.Name())
		if err != nil {
			s.logger.Warn("Skipping document outside the input directory.",
				zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		paths[entry.Name()] = path
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md", ".pdf":
			docs = append(docs, &document{name: entry.Name(), path: path})
		}
	}

	// Text extraction, PDF parsing in particular, dominates load time, so
	// documents are extracted concurrently and ingested in order afterwards.
	g := new(errgroup.Group)
	g.SetLimit(4)
	for _, doc := range docs {
		g.Go(func() error {
			if strings.EqualFold(filepath.Ext(doc.name), ".pdf") {
				text, err := extractPDFText(doc.path)
				if err != nil {
					s.logger.Warn("PDF text extraction failed, file kept for upload only.",
						zap.String("name", doc.name), zap.Error(err))
					return nil
				}
				doc.text = text
				return nil
			}
			raw, err := os.ReadFile(doc.path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", doc.name, err)
			}
			doc.text = string(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, path := range paths {
		s.files[name] = path
	}
	for _, doc := range docs {
		if doc.text == "" {
			continue
		}
		added := s.ingestFacts(doc.text)
		s.logger.Debug("Document loaded.",
			zap.String("name", doc.name), zap.Int("facts", added))
	}

	s.logger.Info("Reference documents loaded.",
		zap.Int("files", len(s.files)), zap.Int("facts", len(s.fields)))
	return nil
}

// resolve confines a document name to the input directory.
func (s *Store) resolve(name string) (string, error) {
	path := filepath.Join(s.dir, name)
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return "", err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%q escapes the documents directory", name)
	}
	return abs, nil
}

// ingestFacts pulls "Key: Value" lines out of a document. Later documents
// override earlier ones on key collisions.
func (s *Store) ingestFacts(text string) int {
	added := 0
	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = normalize(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" || len(strings.Fields(key)) > 6 {
			continue
		}
		s.fields[key] = value
		added++
	}
	return added
}

// Lookup answers a question prompt from the loaded facts. A fact matches
// when every word of its key appears in the prompt.
func (s *Store) Lookup(prompt string) (string, bool) {
	p := " " + normalize(prompt) + " "

	s.mu.RLock()
	defer s.mu.RUnlock()

	var bestKey, bestValue string
	for key, value := range s.fields {
		if !keyMatches(p, key) {
			continue
		}
		// Prefer the most specific matching key.
		if len(key) > len(bestKey) {
			bestKey, bestValue = key, value
		}
	}
	if bestKey == "" {
		return "", false
	}
	return bestValue, true
}

func keyMatches(prompt, key string) bool {
	for _, word := range strings.Fields(key) {
		if !strings.Contains(prompt, " "+word+" ") {
			return false
		}
	}
	return true
}

// FilePath returns the absolute path of a loaded document by name.
func (s *Store) FilePath(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.files[name]
	return path, ok
}

// ResumePath finds the document that looks like a resume for file-upload
// questions.
func (s *Store) ResumePath() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, path := range s.files {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "resume") || strings.Contains(lower, "cv") {
			return path, true
		}
	}
	return "", false
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
