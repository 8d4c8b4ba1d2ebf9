//go:build unix

package fsutil

import (
	"io/fs"
	"syscall"
)

// ownership pulls owner and link-count details out of the platform
// stat structure.
func ownership(fi fs.FileInfo) (uid, gid uint32, links uint64) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, 0
	}
	return st.Uid, st.Gid, uint64(st.Nlink)
}
