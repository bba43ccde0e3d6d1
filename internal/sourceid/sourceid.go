// Package sourceid derives stable source tags from file paths for ingested
// documents.
package sourceid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Tag returns a stable source tag for the given absolute path: the base name
// plus a short path hash, e.g. "report.pdf#3fa4b2c1". Same path always yields
// the same tag; two files with the same name in different directories get
// distinct tags. Used to replace or delete a document's chunks by path.
func Tag(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return filepath.Base(normalized) + "#" + hex.EncodeToString(hash[:4])
}
