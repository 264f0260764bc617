package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyImagesID names the built-in provider that seeds a snapshot from the
// project's source folio images.
const CopyImagesID = "copyimages"

// CopyImages copies every folio image into the output directory unchanged.
// It backs initial imports and gives tests a provider with observable
// output.
type CopyImages struct{}

func (CopyImages) ID() string { return CopyImagesID }

func (CopyImages) Run(ctx context.Context, req Request) error {
	entries, err := os.ReadDir(req.FoliosDir)
	if err != nil {
		return fmt.Errorf("read folios directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(req.FoliosDir, entry.Name())
		dst := filepath.Join(req.OutputDir, entry.Name())
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
