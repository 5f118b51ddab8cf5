package release

import (
	"fmt"
	"os"
	"path/filepath"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

// PublishCandidate points the symlink root/name at target. The new link is
// created under a temporary name and renamed over the old one, so a reader
// always sees either the previous or the new candidate.
func PublishCandidate(root, name, target string) (string, error) {
	link := filepath.Join(root, name)

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return "", kerrors.FileSystemError("candidate target is not a directory").
			WithCause(err).
			WithContext("path", target).
			Build()
	}

	if fi, err := os.Lstat(link); err == nil && fi.Mode()&os.ModeSymlink == 0 {
		// A real directory cannot be replaced by rename; clear it the way
		// the manual procedure did.
		if err := os.RemoveAll(link); err != nil {
			return "", kerrors.FileSystemError("failed to remove existing candidate").
				WithCause(err).
				WithContext("path", link).
				Build()
		}
	}

	tmp := filepath.Join(root, fmt.Sprintf(".%s.%d.tmp", name, os.Getpid()))
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return "", kerrors.FileSystemError("failed to create candidate link").
			WithCause(err).
			WithContext("path", tmp).
			Build()
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return "", kerrors.FileSystemError("failed to publish candidate link").
			WithCause(err).
			WithContext("path", link).
			Build()
	}
	return link, nil
}

// Candidate returns the current target of the candidate link, or "" if none.
func Candidate(root, name string) (string, error) {
	target, err := os.Readlink(filepath.Join(root, name))
	if os.IsNotExist(err) {
		return "", nil
	}
	return target, err
}
