//go:build !linux

package server

import (
	"os"

	"github.com/flintfs/flint"
)

// The extended operations below lean on Linux-specific syscalls. On other
// platforms they answer ErrorUnimplemented, which the kernel treats as "not
// supported" rather than a failure.

func statfsPath(path string) (*flint.StatfsResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func setxattrPath(path, name string, value []byte, flags uint32) error {
	return flint.ErrorUnimplemented
}

func getxattrPath(path, name string, size uint32) (*flint.XattrResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func listxattrPath(path string, size uint32) (*flint.XattrResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func removexattrPath(path, name string) error {
	return flint.ErrorUnimplemented
}

func fallocateFile(f *os.File, mode uint32, offset, length uint64) error {
	return flint.ErrorUnimplemented
}

func copyFileRange(src *os.File, srcOff uint64, dst *os.File, dstOff uint64, length uint64) (uint32, error) {
	return 0, flint.ErrorUnimplemented
}

func mknodPath(path string, mode os.FileMode, dev uint32) error {
	return flint.ErrorUnimplemented
}

func accessPath(path string, mask uint32) error {
	return flint.ErrorUnimplemented
}

func renamePath(oldPath, newPath string, flags flint.RenameFlags) error {
	if flags != 0 {
		return flint.ErrorUnimplemented
	}
	return os.Rename(oldPath, newPath)
}

func getlkFile(f *os.File, req *flint.LockRequest) (*flint.LockResponse, error) {
	return nil, flint.ErrorUnimplemented
}

func setlkFile(f *os.File, req *flint.LockRequest) error {
	return flint.ErrorUnimplemented
}
