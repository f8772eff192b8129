package scanning

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	whitespace  = regexp.MustCompile(`\s+`)
	validExt    = regexp.MustCompile(`^\.[a-z0-9]+$`)
)

// IDGenerator generates unique artifact name prefixes
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type clock struct{}

func (c *clock) Now() time.Time {
	return time.Now()
}

// Workspace is a scratch directory for per-request artifacts
type Workspace struct {
	dir         string
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewWorkspace creates the scratch directory if needed
func NewWorkspace(dir string) (*Workspace, error) {
	return NewWorkspaceWithDeps(dir, &uuidGenerator{}, &clock{})
}

// NewWorkspaceWithDeps creates a Workspace with custom naming dependencies for testing
func NewWorkspaceWithDeps(dir string, idGen IDGenerator, timeSrc TimeSource) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}
	return &Workspace{dir: dir, idGenerator: idGen, timeSource: timeSrc}, nil
}

// Dir returns the scratch directory
func (w *Workspace) Dir() string {
	return w.dir
}

// UniqueName qualifies a sanitized filename so concurrent requests never collide.
func (w *Workspace) UniqueName(filename string) string {
	return fmt.Sprintf("%d_%s_%s", w.timeSource.Now().UnixNano(), w.idGenerator.Generate(), SanitizeFilename(filename))
}

// Save writes data under name and returns the full path
func (w *Workspace) Save(name string, data []byte) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// Remove deletes an artifact. A file that is already gone is not an error.
func (w *Workspace) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// SanitizeFilename strips everything but letters, digits, hyphens and
// underscores from the base name, collapses whitespace to underscores and
// lowercases the extension.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(base)
	base = whitespace.ReplaceAllString(base, "_")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "document"
	}
	if !validExt.MatchString(ext) {
		ext = ""
	}

	return base + ext
}
