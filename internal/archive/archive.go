package archive

import "io"

// Archive keeps accepted raw quiz definition files for audit. Archiving is
// best-effort from the caller's point of view: an archive failure never fails
// the ingestion itself.
type Archive interface {
	Store(name string, data io.Reader) error
	Close() error
}

// Noop is used when no archive backend is configured.
type Noop struct{}

func (Noop) Store(string, io.Reader) error { return nil }
func (Noop) Close() error                  { return nil }
