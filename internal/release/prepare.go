// Package release manages the local release directories and the candidate link.
package release

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

// ArchiveSuffix is appended to a release directory to name its backup.
const ArchiveSuffix = ".tgz"

// Prepare leaves dir existing and empty. A non-empty existing directory is
// first archived to dir+".tgz", replacing any earlier archive. It reports
// whether an archive was written.
func Prepare(dir string) (bool, error) {
	archived := false
	entries, err := os.ReadDir(dir)
	switch {
	case err == nil:
		if len(entries) > 0 {
			if err := Archive(dir, dir+ArchiveSuffix); err != nil {
				return false, err
			}
			archived = true
		}
		if err := os.RemoveAll(dir); err != nil {
			return archived, kerrors.FileSystemError("failed to clear release directory").
				WithCause(err).
				WithContext("path", dir).
				Build()
		}
	case !os.IsNotExist(err):
		return false, kerrors.FileSystemError("failed to inspect release directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return archived, kerrors.FileSystemError("failed to create release directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}
	return archived, nil
}

// Archive writes a gzip-compressed tarball of dir to dest. Entries are named
// relative to the parent of dir, so the archive unpacks to a directory of the
// same name. The tarball is built beside dest and renamed into place.
func Archive(dir, dest string) error {
	wrap := func(err error, msg string) error {
		return kerrors.FileSystemError(msg).
			WithCause(err).
			WithContext("path", dest).
			Build()
	}

	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return wrap(err, "failed to remove previous archive")
	}
	tmp := dest + ".part"
	// #nosec G304 -- archive path derives from the configured release root
	f, err := os.Create(tmp)
	if err != nil {
		return wrap(err, "failed to create archive")
	}
	err = writeTarball(f, dir)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return wrap(err, "failed to write archive")
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return wrap(err, "failed to finalize archive")
	}
	return nil
}

func writeTarball(w io.Writer, dir string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	base := filepath.Dir(dir)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		// #nosec G304 -- walking the release directory
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		_ = src.Close()
		return err
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
