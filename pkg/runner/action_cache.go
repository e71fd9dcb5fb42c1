package runner

import (
	"archive/tar"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/xdg"
	git "github.com/go-git/go-git/v5"
	config "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// ActionCache fetches remote action repositories and serves their
// trees. Entries are keyed by (owner, repo, ref) resolved to a commit
// sha and never mutated, so concurrent runs stay safe.
type ActionCache interface {
	Fetch(ctx context.Context, cacheDir, url, ref, token string) (string, error)
	GetTarArchive(ctx context.Context, cacheDir, sha, fpath string) (io.ReadCloser, error)
}

// GoGitActionCache keeps one bare repository per remote under Path
type GoGitActionCache struct {
	Path string
}

// DefaultActionCacheDir is where remote actions are cached when no
// explicit directory is configured.
func DefaultActionCacheDir() string {
	return filepath.Join(xdg.CacheHome, "wrkflw", "actions")
}

func (c GoGitActionCache) gitPath(cacheDir string) string {
	return filepath.Join(c.Path, safeFilename(cacheDir)+".git")
}

// Fetch resolves ref in the remote url to a commit sha, fetching into
// the cache's bare repository as needed.
func (c GoGitActionCache) Fetch(ctx context.Context, cacheDir, url, ref, token string) (string, error) {
	gitPath := c.gitPath(cacheDir)
	gogitrepo, err := git.PlainInit(gitPath, true)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		gogitrepo, err = git.PlainOpen(gitPath)
	}
	if err != nil {
		return "", err
	}
	tmpBranch := make([]byte, 12)
	_, _ = rand.Read(tmpBranch)
	branchName := hex.EncodeToString(tmpBranch)
	var refSpec config.RefSpec
	spec := config.RefSpec(ref + ":" + branchName)
	tagOrSha := false
	if spec.IsExactSHA1() {
		refSpec = spec
	} else if strings.HasPrefix(ref, "refs/") {
		refSpec = config.RefSpec(ref + ":refs/heads/" + branchName)
	} else {
		tagOrSha = true
		refSpec = config.RefSpec("refs/*/" + ref + ":refs/heads/*/" + branchName)
	}
	var auth transport.AuthMethod
	if token != "" {
		auth = &http.BasicAuth{
			Username: "token",
			Password: token,
		}
	}
	remote, err := gogitrepo.CreateRemoteAnonymous(&config.RemoteConfig{
		Name: "anonymous",
		URLs: []string{
			url,
		},
	})
	if err != nil {
		return "", err
	}
	defer func() {
		if refs, err := gogitrepo.References(); err == nil {
			_ = refs.ForEach(func(r *plumbing.Reference) error {
				if strings.Contains(r.Name().String(), branchName) {
					return gogitrepo.DeleteBranch(r.Name().String())
				}
				return nil
			})
		}
	}()
	if err := remote.FetchContext(ctx, &git.FetchOptions{
		RefSpecs: []config.RefSpec{
			refSpec,
		},
		Auth:  auth,
		Force: true,
	}); err != nil {
		return "", err
	}
	if tagOrSha {
		for _, prefix := range []string{"refs/heads/tags/", "refs/heads/heads/"} {
			hash, err := gogitrepo.ResolveRevision(plumbing.Revision(prefix + branchName))
			if err == nil {
				return hash.String(), nil
			}
		}
	}
	hash, err := gogitrepo.ResolveRevision(plumbing.Revision(branchName))
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// GetTarArchive streams the tree at sha below fpath as a tar archive
func (c GoGitActionCache) GetTarArchive(ctx context.Context, cacheDir, sha, fpath string) (io.ReadCloser, error) {
	gitPath := c.gitPath(cacheDir)
	gogitrepo, err := git.PlainOpen(gitPath)
	if err != nil {
		return nil, err
	}
	commit, err := gogitrepo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, err
	}
	files, err := commit.Files()
	if err != nil {
		return nil, err
	}
	rpipe, wpipe := io.Pipe()
	go func() {
		defer wpipe.Close()
		tw := tar.NewWriter(wpipe)
		defer tw.Close()
		fcpath := path.Clean(fpath)
		_ = files.ForEach(func(f *object.File) error {
			name := f.Name
			if fcpath != "." {
				if strings.HasPrefix(name, fcpath+"/") {
					name = name[len(fcpath)+1:]
				} else if name != fcpath {
					return nil
				}
			}
			fmode, err := f.Mode.ToOSFileMode()
			if err != nil {
				return err
			}
			if fmode&fs.ModeSymlink == fs.ModeSymlink {
				content, err := f.Contents()
				if err != nil {
					return err
				}
				return tw.WriteHeader(&tar.Header{
					Name:     name,
					Mode:     int64(fmode),
					Linkname: content,
				})
			}
			if err := tw.WriteHeader(&tar.Header{
				Name: name,
				Mode: int64(fmode),
				Size: f.Size,
			}); err != nil {
				return err
			}
			reader, err := f.Reader()
			if err != nil {
				return err
			}
			defer reader.Close()
			_, err = io.Copy(tw, reader)
			return err
		})
	}()
	return rpipe, nil
}

var safeFilenamePattern = regexp.MustCompile(`[^a-zA-Z0-9-._]`)

func safeFilename(name string) string {
	return safeFilenamePattern.ReplaceAllString(name, "_")
}

// fetchActionToDir materializes owner/repo@ref below destDir and
// returns the directory holding subpath. Extracted trees are keyed by
// the resolved sha, so an existing extraction is reused as-is.
func fetchActionToDir(ctx context.Context, cachePath string, ra *remoteAction, token string) (string, error) {
	cache := GoGitActionCache{Path: cachePath}
	cacheKey := strings.Join([]string{ra.Org, ra.Repo}, "/")

	sha, err := cache.Fetch(ctx, cacheKey, ra.CloneURL(), ra.Ref, token)
	if err != nil {
		return "", err
	}

	extractDir := filepath.Join(cachePath, "trees", safeFilename(cacheKey), sha)
	if _, err := os.Stat(extractDir); err == nil {
		return filepath.Join(extractDir, filepath.FromSlash(ra.Path)), nil
	}

	archive, err := cache.GetTarArchive(ctx, cacheKey, sha, "")
	if err != nil {
		return "", err
	}
	defer archive.Close()

	tmpDir := extractDir + ".tmp"
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", err
	}
	if err := extractTar(tmpDir, archive); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	if err := os.Rename(tmpDir, extractDir); err != nil && !os.IsExist(err) {
		// another run won the race; use its tree
		os.RemoveAll(tmpDir)
		if _, statErr := os.Stat(extractDir); statErr != nil {
			return "", err
		}
	}
	return filepath.Join(extractDir, filepath.FromSlash(ra.Path)), nil
}

func extractTar(dstPath string, r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := filepath.Clean(header.Name)
		if strings.HasPrefix(name, "..") {
			continue
		}
		target := filepath.Join(dstPath, name)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, target); err != nil && !os.IsExist(err) {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode).Perm()|0o200)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
}
