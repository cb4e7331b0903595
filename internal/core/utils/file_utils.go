package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// CopyFile copies src to dst, replacing dst if it already exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("error reading file info for %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot copy %s: is a directory", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", dst, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("error creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("error copying %s to %s: %w", src, dst, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", dst, err)
	}

	return nil
}

// CopyFileToDir copies src into dir keeping its base name and returns the
// destination path.
func CopyFileToDir(src, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(src))
	if err := CopyFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// ExtractZip unpacks archive into dest. When every entry lives under one
// top-level folder, that folder is stripped so dest holds its contents,
// unless the folder is named in keep.
func ExtractZip(archive, dest string, keep ...string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("error opening archive %s: %w", archive, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(dest, os.ModePerm); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dest, err)
	}

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("error resolving %s: %w", dest, err)
	}

	root := commonRoot(reader.File)
	if slices.Contains(keep, strings.TrimSuffix(root, "/")) {
		root = ""
	}

	for _, file := range reader.File {
		name := strings.TrimPrefix(file.Name, root)
		if name == "" || strings.HasPrefix(name, "__MACOSX/") {
			continue
		}

		target := filepath.Join(absDest, filepath.FromSlash(name))
		if target != absDest && !strings.HasPrefix(target, absDest+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination %s", file.Name, dest)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, os.ModePerm); err != nil {
				return fmt.Errorf("error creating directory %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(file, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return fmt.Errorf("error creating directory for %s: %w", target, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("error opening archive entry %s: %w", file.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("error extracting %s: %w", file.Name, err)
	}

	return nil
}

// commonRoot returns "dir/" if all entries (ignoring macOS metadata) sit
// under a single top-level directory, otherwise "".
func commonRoot(files []*zip.File) string {
	root := ""
	for _, file := range files {
		if strings.HasPrefix(file.Name, "__MACOSX/") {
			continue
		}
		idx := strings.Index(file.Name, "/")
		if idx < 0 {
			return ""
		}
		top := file.Name[:idx+1]
		if root == "" {
			root = top
		} else if root != top {
			return ""
		}
	}
	return root
}
