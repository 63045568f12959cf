package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// HashDir hashes every regular file below dir, keyed by slash-separated
// relative path.
func HashDir(dir string, skip func(rel string) bool) (map[string]string, error) {
	hashes := make(map[string]string)
	err := walkFiles(dir, func(path, rel string) error {
		if skip != nil && skip(rel) {
			return nil
		}
		hash, err := HashFile(path)
		if err != nil {
			return err
		}
		hashes[rel] = hash
		return nil
	})
	return hashes, err
}
