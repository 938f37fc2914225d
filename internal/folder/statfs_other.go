//go:build !unix

package folder

import (
	"fmt"

	"ttshist/internal/history"
)

func statQuota(path string) (history.Quota, error) {
	return history.Quota{}, fmt.Errorf("statfs %s: %w", path, history.ErrUnsupported)
}
