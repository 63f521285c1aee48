package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// writeFileAtomic streams write's output to a temp file beside dest, syncs
// it and renames it over dest. On any failure the temp file is removed and
// dest is left as it was.
func writeFileAtomic(ctx context.Context, dest string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ioFailure("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return ioFailure("create", dest, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return ioFailure("write", dest, err)
	}
	if err := ctx.Err(); err != nil {
		return ioFailure("write", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		return ioFailure("sync", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return ioFailure("close", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return ioFailure("rename", dest, err)
	}
	return nil
}
