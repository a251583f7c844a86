// Package cbz packs a chapter folder into a verified comic book archive.
package cbz

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/brogergvhs/sushidl/internal/chapters"
)

// MinSize is the smallest archive considered a real chapter. Anything at or
// below it is treated as a failed build.
const MinSize = 10000

var (
	ErrEmptyFolder = errors.New("no files to archive")
	ErrTooSmall    = errors.New("archive below minimum size")
)

// Archive writes "<title> - <label>.cbz" next to folder with the folder's
// files in lexicographic order, verifies it, and removes folder on success.
// On any failure folder is left untouched.
func Archive(folder, title, label string) (string, error) {
	files, err := collect(folder)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("cbz %s: %w", folder, ErrEmptyFolder)
	}

	output := filepath.Join(filepath.Dir(folder), chapters.ArchiveName(title, label))

	if err := write(output, folder, files); err != nil {
		_ = os.Remove(output)
		return "", fmt.Errorf("cbz %s: %w", output, err)
	}

	if err := Verify(output); err != nil {
		_ = os.Remove(output)
		return "", fmt.Errorf("cbz %s: corrupted archive: %w", output, err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return "", fmt.Errorf("cbz %s: %w", output, err)
	}
	if info.Size() <= MinSize {
		_ = os.Remove(output)
		return "", fmt.Errorf("cbz %s: %w (%d bytes)", output, ErrTooSmall, info.Size())
	}

	if err := os.RemoveAll(folder); err != nil {
		return output, fmt.Errorf("cbz: remove %s: %w", folder, err)
	}

	return output, nil
}

// collect returns the slash-separated paths of every file below folder, sorted.
func collect(folder string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cbz: scan %s: %w", folder, err)
	}

	sort.Strings(files)
	return files, nil
}

func write(output, folder string, files []string) error {
	out, err := os.Create(output)
	if err != nil {
		return err
	}

	z := zip.NewWriter(out)
	for _, name := range files {
		if err := addFile(z, folder, name); err != nil {
			_ = z.Close()
			_ = out.Close()
			return err
		}
	}

	if err := z.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func addFile(z *zip.Writer, folder, name string) error {
	f, err := os.Open(filepath.Join(folder, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := z.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}

// Verify reads every entry of the archive so CRC mismatches surface.
func Verify(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		_, err = io.Copy(io.Discard, rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

// Exists reports whether path holds an archive large enough to skip a
// chapter on a later run.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > MinSize
}
