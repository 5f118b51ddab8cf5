// Package checksum writes the release checksum manifest.
//
// The manifest carries three sections (CRC, MD5 and SHA1), each covering the
// kit archives of the release directory in lexical order. Lines reproduce the
// output of cksum, md5sum/sha1sum (GNU) or md5 -r/shasum (BSD).
package checksum

import (
	"bufio"
	"crypto/md5"  // #nosec G501 -- published kit checksum, not a security control
	"crypto/sha1" // #nosec G505 -- published kit checksum, not a security control
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"git.home.luguber.info/inful/kitbuilder/internal/config"
	kerrors "git.home.luguber.info/inful/kitbuilder/internal/errors"
)

// Pattern selects the files covered by the manifest.
const Pattern = "*.*z*"

// Digest holds every checksum of one file.
type Digest struct {
	Name string
	Size int64
	CRC  uint32
	MD5  string
	SHA1 string
}

// ResolveStyle maps "auto" to the style of the utilities on this platform.
func ResolveStyle(style string) string {
	if style == "" || style == config.ChecksumStyleAuto {
		if runtime.GOOS == "darwin" || runtime.GOOS == "freebsd" {
			return config.ChecksumStyleBSD
		}
		return config.ChecksumStyleGNU
	}
	return style
}

// Files returns the base names in dir matching Pattern, sorted.
func Files(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, Pattern))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, err
		}
		if info.Mode().IsRegular() {
			names = append(names, filepath.Base(m))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Compute reads path once and returns all of its checksums.
func Compute(path string) (Digest, error) {
	// #nosec G304 -- path is a file inside the release directory
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer func() { _ = f.Close() }()

	crc := newCksum()
	m := md5.New()  // #nosec G401
	s := sha1.New() // #nosec G401
	n, err := io.Copy(io.MultiWriter(crc, m, s), f)
	if err != nil {
		return Digest{}, err
	}
	return Digest{
		Name: filepath.Base(path),
		Size: n,
		CRC:  crc.Sum32(),
		MD5:  hex.EncodeToString(m.Sum(nil)),
		SHA1: hex.EncodeToString(s.Sum(nil)),
	}, nil
}

// WriteManifest computes the digests of the kits in dir and writes the
// manifest file name inside it. It returns the manifest path and the digests.
func WriteManifest(dir, name, style string) (string, []Digest, error) {
	names, err := Files(dir)
	if err != nil {
		return "", nil, kerrors.FileSystemError("failed to list release files").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}
	digests := make([]Digest, 0, len(names))
	for _, n := range names {
		d, err := Compute(filepath.Join(dir, n))
		if err != nil {
			return "", nil, kerrors.FileSystemError("failed to checksum file").
				WithCause(err).
				WithContext("path", filepath.Join(dir, n)).
				Build()
		}
		digests = append(digests, d)
	}

	path := filepath.Join(dir, name)
	// #nosec G304 -- manifest lives in the release directory
	f, err := os.Create(path)
	if err != nil {
		return "", nil, kerrors.FileSystemError("failed to create manifest").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	werr := Render(f, digests, style)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return "", nil, kerrors.FileSystemError("failed to write manifest").
			WithCause(werr).
			WithContext("path", path).
			Build()
	}
	return path, digests, nil
}

// Render writes the three manifest sections for digests.
func Render(w io.Writer, digests []Digest, style string) error {
	bsd := ResolveStyle(style) == config.ChecksumStyleBSD
	bw := bufio.NewWriter(w)

	section := func(title string, line func(Digest) string) {
		fmt.Fprintf(bw, "%s checksums:\n\n", title)
		for _, d := range digests {
			bw.WriteString(line(d))
			bw.WriteByte('\n')
		}
	}

	section("CRC", func(d Digest) string {
		return fmt.Sprintf("%d %d %s", d.CRC, d.Size, d.Name)
	})
	section("MD5", func(d Digest) string {
		if bsd {
			return d.MD5 + " " + d.Name
		}
		return d.MD5 + "  " + d.Name
	})
	section("SHA1", func(d Digest) string {
		return d.SHA1 + "  " + d.Name
	})
	return bw.Flush()
}
