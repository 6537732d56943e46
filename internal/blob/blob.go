// Package blob stores uploaded attachment bytes.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Store writes objects and resolves their public URLs.
type Store interface {
	Put(ctx context.Context, path, contentType string, r io.Reader, size int64) error
	URL(ctx context.Context, path string) (string, error)
}

// cleanPath rejects paths that could escape the store root.
func cleanPath(p string) (string, error) {
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", fmt.Errorf("blob: empty path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("blob: invalid path %q", p)
		}
	}
	return p, nil
}
