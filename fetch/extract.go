package fetch

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type format int

const (
	formatUnknown format = iota
	formatZip
	formatTarGz
	formatTar
)

func detect(name string, head []byte) format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return formatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return formatTarGz
	case strings.HasSuffix(lower, ".tar"):
		return formatTar
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return formatZip
	case bytes.HasPrefix(head, []byte{0x1f, 0x8b}):
		return formatTarGz
	}
	return formatUnknown
}

// extract unpacks the archive file into dest. name is used for format detection
// before falling back to the file's magic bytes.
func extract(archive, name, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}

	switch detect(name, head[:n]) {
	case formatZip:
		info, err := f.Stat()
		if err != nil {
			return errors.WithStack(err)
		}
		return unzip(f, info.Size(), dest)
	case formatTarGz:
		gz, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			return errors.WithStack(err)
		}
		defer gz.Close()
		return untar(gz, dest)
	case formatTar:
		return untar(f, dest)
	}
	return errors.Wrapf(ErrUnsupportedArchive, "%s", name)
}

// safeJoin joins an archive entry name to dest, rejecting names that leave dest.
func safeJoin(dest, name string) (string, error) {
	name = filepath.FromSlash(name)
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", errors.Wrapf(ErrUnsafePath, "%q", name)
	}
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(ErrUnsafePath, "%q", name)
	}
	return target, nil
}

func unzip(r io.ReaderAt, size int64, dest string) error {
	zr, err := zip.NewReader(r, size)
	if errors.Is(err, zip.ErrInsecurePath) {
		return errors.Wrap(ErrUnsafePath, err.Error())
	}
	if err != nil {
		return errors.WithStack(err)
	}
	for _, zf := range zr.File {
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return err
		}
		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.WithStack(err)
			}
		case mode.IsRegular():
			rc, err := zf.Open()
			if err != nil {
				return errors.Wrapf(err, "opening %s", zf.Name)
			}
			err = writeFile(target, rc)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// visitor is called for each entry of a tar archive.
type visitor func(header *tar.Header, r io.Reader) error

func walkTar(r io.Reader, vf visitor) error {
	t := tar.NewReader(r)
	for {
		header, err := t.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.WithStack(err)
		}
		if err := vf(header, t); err != nil {
			return err
		}
	}
}

func untar(r io.Reader, dest string) error {
	return walkTar(r, func(header *tar.Header, r io.Reader) error {
		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			return errors.WithStack(os.MkdirAll(target, 0o755))
		case tar.TypeReg:
			return writeFile(target, r)
		}
		return nil
	})
}

func writeFile(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.WithStack(err)
	}
	out, err := os.Create(target)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return errors.Wrapf(err, "writing %s", target)
	}
	return errors.WithStack(out.Close())
}
