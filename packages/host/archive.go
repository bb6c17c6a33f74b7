package host

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractTarball unpacks a gzip-compressed tar archive into the directory
// that contains it.
func ExtractTarball(path string) error {
	return ExtractTarballTo(path, filepath.Dir(path))
}

// ExtractTarballTo unpacks a gzip-compressed tar archive into dest. Entries
// that would land outside dest fail the whole extraction.
func ExtractTarballTo(path, dest string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read gzip stream: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	realDest, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		target, err := entryPath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			// links extracted earlier may redirect the directory itself
			resolvedPath, err := resolveWithin(realDest, target)
			if err != nil {
				return fmt.Errorf("archive entry %q: %w", hdr.Name, err)
			}
			if err := os.MkdirAll(resolvedPath, dirMode(hdr)); err != nil {
				return fmt.Errorf("failed to create %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			resolvedPath, err := resolveParent(realDest, target)
			if err != nil {
				return fmt.Errorf("archive entry %q: %w", hdr.Name, err)
			}
			if err := writeFile(resolvedPath, tr, hdr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			resolvedPath, err := resolveParent(realDest, target)
			if err != nil {
				return fmt.Errorf("archive link %q: %w", hdr.Name, err)
			}
			if err := writeSymlink(realDest, resolvedPath, hdr); err != nil {
				return err
			}
		case tar.TypeLink:
			resolvedPath, err := resolveParent(realDest, target)
			if err != nil {
				return fmt.Errorf("archive link %q: %w", hdr.Name, err)
			}
			if err := writeHardLink(dest, realDest, resolvedPath, hdr); err != nil {
				return err
			}
		default:
			return fmt.Errorf("archive entry %q has unsupported type %q", hdr.Name, string(hdr.Typeflag))
		}
	}
}

// entryPath resolves name under dest and rejects traversal
func entryPath(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("archive entry %q has an absolute path", name)
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	if err := validatePathWithinBase(target, dest); err != nil {
		return "", fmt.Errorf("archive entry %q: %w", name, err)
	}
	return target, nil
}

func validatePathWithinBase(path, baseDir string) error {
	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside %s", path, baseDir)
	}

	return nil
}

// resolveWithin follows every symlink already on disk along path and
// rejects it when the real location is outside realDest. Components that do
// not exist yet are appended unresolved.
func resolveWithin(realDest, path string) (string, error) {
	existing := path
	var missing []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}

	resolvedPath, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", existing, err)
	}
	resolvedPath = filepath.Join(append([]string{resolvedPath}, missing...)...)

	if err := validatePathWithinBase(resolvedPath, realDest); err != nil {
		return "", err
	}
	return resolvedPath, nil
}

// resolveLink walks linkname from the symlink-free directory dir the way the
// kernel would: existing links are followed before ".." is applied, so
// "up/../x" is not cleaned to "x" when up is itself a link.
func resolveLink(realDest, dir, linkname string) (string, error) {
	cur := dir
	if filepath.IsAbs(linkname) {
		cur = string(filepath.Separator)
	}
	for _, part := range strings.Split(filepath.ToSlash(linkname), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
			continue
		}
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if err != nil || fi.Mode()&os.ModeSymlink == 0 {
			continue
		}
		resolved, err := filepath.EvalSymlinks(cur)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", cur, err)
		}
		cur = resolved
	}

	if err := validatePathWithinBase(cur, realDest); err != nil {
		return "", err
	}
	return cur, nil
}

// resolveParent resolves the directory holding target. The final component
// is kept as is so an existing link at target is replaced, not followed.
func resolveParent(realDest, target string) (string, error) {
	parent, err := resolveWithin(realDest, filepath.Dir(target))
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, filepath.Base(target)), nil
}

func dirMode(hdr *tar.Header) os.FileMode {
	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		return 0o755
	}
	return mode | 0o700
}

func writeFile(target string, r io.Reader, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", hdr.Name, err)
	}

	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0o644
	}

	// never write through a link left by an earlier entry
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("failed to replace %s: %w", hdr.Name, err)
		}
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", hdr.Name, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", hdr.Name, err)
	}
	return out.Close()
}

// writeSymlink creates the link at target, whose parent is already resolved.
// The link destination is checked against the real parent, so a chain of
// links cannot climb out of realDest.
func writeSymlink(realDest, target string, hdr *tar.Header) error {
	linkTarget := hdr.Linkname
	if _, err := resolveLink(realDest, filepath.Dir(target), linkTarget); err != nil {
		return fmt.Errorf("archive link %q: %w", hdr.Name, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", hdr.Name, err)
	}
	_ = os.Remove(target)
	if err := os.Symlink(linkTarget, target); err != nil {
		return fmt.Errorf("failed to link %s: %w", hdr.Name, err)
	}
	return nil
}

// writeHardLink links target to an entry extracted earlier. Link names are
// relative to the archive root.
func writeHardLink(dest, realDest, target string, hdr *tar.Header) error {
	source, err := entryPath(dest, hdr.Linkname)
	if err != nil {
		return err
	}
	realSource, err := resolveWithin(realDest, source)
	if err != nil {
		return fmt.Errorf("archive link %q: %w", hdr.Name, err)
	}
	fi, err := os.Lstat(realSource)
	if err != nil {
		return fmt.Errorf("archive link %q: target %q was not extracted: %w", hdr.Name, hdr.Linkname, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("archive link %q: target %q is not a regular file", hdr.Name, hdr.Linkname)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", hdr.Name, err)
	}
	_ = os.Remove(target)
	if err := os.Link(realSource, target); err != nil {
		return fmt.Errorf("failed to link %s: %w", hdr.Name, err)
	}
	return nil
}
