// Package batch packages multiple processed documents into a single
// ZIP archive for download.
package batch

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// File is one named payload for the archive
type File struct {
	Name string
	Data []byte
}

// BuildArchive writes the files into a deflate-compressed ZIP archive
func BuildArchive(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		fw, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", f.Name, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
