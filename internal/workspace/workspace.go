package workspace

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const (
	minArtifactNumber = 10000
	maxArtifactNumber = 99999
	maxNameAttempts   = 8
)

var (
	ErrInvalidPath   = errors.New("workspace: invalid path")
	ErrNameExhausted = errors.New("workspace: no free artifact name")
)

// Manager owns the per-user scratch directories under a single root.
type Manager struct {
	root    string
	randInt func() int
}

func New(root string) *Manager {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "tmp"
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Manager{
		root:    filepath.Clean(root),
		randInt: randomArtifactNumber,
	}
}

func (m *Manager) Root() string {
	return m.root
}

// EnsureRoot creates the workspace root with the same checks as user
// directories.
func (m *Manager) EnsureRoot() (string, error) {
	if err := ensureSecureDir(m.root); err != nil {
		return "", fmt.Errorf("workspace ensure root %s: %w", m.root, err)
	}
	return m.root, nil
}

// Dir returns the workspace path of a user without creating it.
func (m *Manager) Dir(userID int64) string {
	return filepath.Join(m.root, strconv.FormatInt(userID, 10))
}

// EnsureDir creates the user's directory if needed. Calling it again for the
// same user is a no-op.
func (m *Manager) EnsureDir(userID int64) (string, error) {
	dir := m.Dir(userID)
	if err := ensureSecureDir(dir); err != nil {
		return "", fmt.Errorf("workspace ensure dir %s: %w", dir, err)
	}
	return dir, nil
}

// MoveToFinalName renames src to <dir>/<10000..99999>.<ext>. A drawn name that
// already exists is redrawn; there is no lock, so two renames racing on the
// same name can still collide.
func (m *Manager) MoveToFinalName(src, dir, ext string) (string, error) {
	src = strings.TrimSpace(src)
	dir = strings.TrimSpace(dir)
	if src == "" || dir == "" {
		return "", fmt.Errorf("%w: empty source or directory", ErrInvalidPath)
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "png"
	}

	for i := 0; i < maxNameAttempts; i++ {
		dst := filepath.Join(dir, strconv.Itoa(m.randInt())+"."+ext)
		if _, err := os.Lstat(dst); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", err
		}
		if err := os.Rename(src, dst); err != nil {
			return "", fmt.Errorf("workspace rename %s: %w", src, err)
		}
		return dst, nil
	}
	return "", fmt.Errorf("%w in %s", ErrNameExhausted, dir)
}

// Remove deletes an artifact. A file that is already gone is not an error.
func (m *Manager) Remove(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func randomArtifactNumber() int {
	return minArtifactNumber + rand.IntN(maxArtifactNumber-minArtifactNumber+1)
}

func ensureSecureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	fi, err := os.Lstat(dir)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: refusing symlink %s", ErrInvalidPath, dir)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: not a directory %s", ErrInvalidPath, dir)
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if ok && st != nil && st.Uid != uint32(os.Getuid()) {
		return fmt.Errorf("not owned by current user (uid=%d, owner=%d)", os.Getuid(), st.Uid)
	}
	if perm := fi.Mode().Perm(); perm != 0o700 {
		// Try to fix perms if we own it.
		if err := os.Chmod(dir, 0o700); err != nil {
			return fmt.Errorf("insecure perms (%#o) and chmod failed: %w", perm, err)
		}
	}
	return nil
}
