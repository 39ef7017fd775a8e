package compressor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

type GzipCompressor struct {
	level int
}

func NewGzip() *GzipCompressor {
	return &GzipCompressor{level: gzip.BestCompression}
}

// Encoding is the Content-Encoding value of the compressor's output.
func (g *GzipCompressor) Encoding() string {
	return "gzip"
}

func (g *GzipCompressor) Compress(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}

	if err := g.write(destFile, sourceFile); err != nil {
		destFile.Close()
		return err
	}

	if err := destFile.Close(); err != nil {
		return fmt.Errorf("failed to close dest file: %w", err)
	}

	return nil
}

// CompressTemp compresses sourcePath into a new temporary file. The caller
// must remove the returned path.
func (g *GzipCompressor) CompressTemp(sourcePath string) (string, error) {
	tmp, err := os.CreateTemp("", "stowage-*-"+filepath.Base(sourcePath)+".gz")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := g.Compress(sourcePath, tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	return tmpPath, nil
}

func (g *GzipCompressor) write(dst io.Writer, src io.Reader) error {
	gzipWriter, err := gzip.NewWriterLevel(dst, g.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := io.Copy(gzipWriter, src); err != nil {
		gzipWriter.Close()
		return fmt.Errorf("failed to compress: %w", err)
	}

	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip stream: %w", err)
	}

	return nil
}
