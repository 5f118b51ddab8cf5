// Package kit runs the release kit pipeline: checkout and build on every
// host, version agreement, artifact retrieval into the release directory,
// checksum manifest and candidate publication.
package kit
