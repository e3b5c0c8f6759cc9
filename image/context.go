package image

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Directories never shipped to the daemon. They hold artifacts that either
// change on every run or have no business inside an image.
var skippedDirs = map[string]bool{
	".git":        true,
	".plinth":     true,
	".venv":       true,
	"__pycache__": true,
}

// skippedFile reports whether a file stays out of the build context. The
// rendered Dockerfile replaces any root-level one, the tool's own config
// file is not part of the app, and bytecode caches are throwaway.
func skippedFile(rel string) bool {
	if rel == DockerfileName || rel == "plinth.yaml" {
		return true
	}
	return strings.HasSuffix(rel, ".pyc")
}

// walkSource visits every regular file under root that belongs in the build
// context, in lexical order, with slash-separated paths relative to root.
func walkSource(root string, visit func(rel, path string, info fs.FileInfo) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if skippedFile(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return visit(rel, path, info)
	})
}

// buildContext assembles the tar archive the daemon builds from: the rendered
// Dockerfile first, then the app source tree.
func buildContext(root string, dockerfile []byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	hdr := &tar.Header{
		Name:    DockerfileName,
		Mode:    0o644,
		Size:    int64(len(dockerfile)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("failed to write Dockerfile header: %w", err)
	}
	if _, err := tw.Write(dockerfile); err != nil {
		return nil, fmt.Errorf("failed to write Dockerfile to context: %w", err)
	}

	err := walkSource(root, func(rel, path string, info fs.FileInfo) error {
		fileHdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		fileHdr.Name = rel

		if err := tw.WriteHeader(fileHdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to tar build context %s: %w", root, err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize build context: %w", err)
	}
	return &buf, nil
}

// hashTree feeds the context-relevant content of root into h: relative paths
// and file bytes, in walk order. Timestamps and permissions are left out so
// checking out the same tree twice hashes the same.
func hashTree(h io.Writer, root string) error {
	return walkSource(root, func(rel, path string, _ fs.FileInfo) error {
		if _, err := io.WriteString(h, rel); err != nil {
			return err
		}
		if _, err := h.Write([]byte{0}); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		_, err = h.Write([]byte{0})
		return err
	})
}
