package compressor

import (
	"io"
	"os"
	"path/filepath"
)

// tempPrefix starts the name of every temporary output file.
const tempPrefix = ".ic-"

// createTemp creates a hidden temporary file next to finalPath. The name keeps
// finalPath's extension so tools that sniff it see the right type.
func createTemp(finalPath string, perm os.FileMode) (*os.File, error) {
	f, err := os.CreateTemp(filepath.Dir(finalPath), tempPrefix+"*-"+filepath.Base(finalPath))
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}

// copyFile copies src to dst byte for byte. The copy lands in a temporary
// file first and is renamed over dst, so dst is never left half written.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := createTemp(dst, info.Mode().Perm())
	if err != nil {
		return err
	}
	tmp := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// samePath reports whether a and b name the same location.
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
