package cas

import "go.trai.ch/rex/internal/core/domain"

var (
	Encode = encode
	Decode = decode
)

// BlobPath exposes the on-disk location of a digest.
func (s *DiskStore) BlobPath(d domain.Digest) string {
	return s.filename(d)
}
