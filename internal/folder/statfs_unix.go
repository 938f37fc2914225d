//go:build unix

package folder

import (
	"fmt"

	"golang.org/x/sys/unix"

	"ttshist/internal/history"
)

func statQuota(path string) (history.Quota, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return history.Quota{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	bsize := int64(st.Bsize)
	return history.Quota{
		TotalBytes: int64(st.Blocks) * bsize,
		FreeBytes:  int64(st.Bavail) * bsize,
	}, nil
}
