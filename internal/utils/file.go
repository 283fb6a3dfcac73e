package utils

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// FileHash calculates the SHA-256 hash of a file, streamed.
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// WriteFileAtomic writes data to a sibling temp file and renames it into
// place, so readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := EnsureParent(path); err != nil {
		return err
	}

	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// CopyReaderAtomic streams r to path with the same temp-and-rename dance as
// WriteFileAtomic. Returns the number of bytes written.
func CopyReaderAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	if err := EnsureParent(path); err != nil {
		return 0, err
	}

	tmp := path + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return n, err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return n, err
	}
	return n, nil
}
