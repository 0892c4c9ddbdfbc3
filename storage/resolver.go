package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// backupDirName is hidden so directory walks over the root skip it.
const backupDirName = ".backups"

// DirResolver lays conversations out as <Root>/<owner>/<name> and backups as
// <Root>/.backups/<owner>.
type DirResolver struct {
	Root string
}

var _ PathResolver = (*DirResolver)(nil)

// NewDirResolver creates a resolver rooted at root.
func NewDirResolver(root string) *DirResolver {
	return &DirResolver{Root: root}
}

// ConversationPath implements PathResolver.
func (r *DirResolver) ConversationPath(ownerID, name string) (string, error) {
	dir, err := r.OwnerDir(ownerID)
	if err != nil {
		return "", err
	}
	if err := checkSegment("conversation name", name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// OwnerDir implements PathResolver.
func (r *DirResolver) OwnerDir(ownerID string) (string, error) {
	if err := checkSegment("owner", ownerID); err != nil {
		return "", err
	}
	return filepath.Join(r.Root, ownerID), nil
}

// BackupDir implements PathResolver.
func (r *DirResolver) BackupDir(ownerID string) (string, error) {
	if err := checkSegment("owner", ownerID); err != nil {
		return "", err
	}
	return filepath.Join(r.Root, backupDirName, ownerID), nil
}

// checkSegment rejects values that would escape their directory or collide
// with hidden bookkeeping entries.
func checkSegment(what, value string) error {
	switch {
	case strings.TrimSpace(value) == "":
		return fmt.Errorf("%w: empty %s", ErrInvalidPath, what)
	case strings.HasPrefix(value, "."):
		return fmt.Errorf("%w: %s %q starts with a dot", ErrInvalidPath, what, value)
	case strings.ContainsAny(value, `/\`) || strings.ContainsRune(value, 0):
		return fmt.Errorf("%w: %s %q contains a path separator", ErrInvalidPath, what, value)
	}
	return nil
}
