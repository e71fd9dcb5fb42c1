package container

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// tarDir writes srcPath as a tar stream. Entries matching the supplied
// ignorer are skipped, as is any .git directory.
func tarDir(srcPath string, ignorer *gitignore.GitIgnore, w io.Writer) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	srcPath = filepath.Clean(srcPath)
	return filepath.Walk(srcPath, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcPath, file)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if fi.IsDir() && fi.Name() == ".git" {
			return filepath.SkipDir
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		var link string
		if fi.Mode()&os.ModeSymlink == os.ModeSymlink {
			if link, err = os.Readlink(file); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(fi, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if fi.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

// CopyDirOnHost mirrors a directory tree on the host filesystem,
// honoring the source's .gitignore when asked. Used by the native
// checkout and the host runtime.
func CopyDirOnHost(dstPath string, srcPath string, useGitIgnore bool) error {
	srcPath = filepath.Clean(srcPath)

	var ignorer *gitignore.GitIgnore
	if useGitIgnore {
		if ig, err := gitignore.CompileIgnoreFile(filepath.Join(srcPath, ".gitignore")); err == nil {
			ignorer = ig
		}
	}

	return filepath.Walk(srcPath, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcPath, file)
		if err != nil {
			return err
		}
		if rel == "." {
			return os.MkdirAll(dstPath, 0o755)
		}
		if fi.IsDir() && fi.Name() == ".git" {
			return filepath.SkipDir
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dstPath, rel)
		switch {
		case fi.IsDir():
			return os.MkdirAll(target, fi.Mode().Perm())
		case fi.Mode()&os.ModeSymlink == os.ModeSymlink:
			link, err := os.Readlink(file)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(link, target); err != nil && !os.IsExist(err) {
				return err
			}
			return nil
		case fi.Mode().IsRegular():
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			src, err := os.Open(file)
			if err != nil {
				return err
			}
			defer src.Close()
			dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
			if err != nil {
				return err
			}
			defer dst.Close()
			_, err = io.Copy(dst, src)
			return err
		default:
			return nil
		}
	})
}
