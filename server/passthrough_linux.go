package server

import (
	"io"
	"math"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/flintfs/flint"
)

func statfsPath(path string) (*flint.StatfsResponse, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return nil, err
	}
	return &flint.StatfsResponse{
		Blocks:       st.Blocks,
		BlocksFree:   st.Bfree,
		BlocksAvail:  st.Bavail,
		Files:        st.Files,
		FilesFree:    st.Ffree,
		BlockSize:    uint32(st.Bsize),
		NameLen:      uint32(st.Namelen),
		FragmentSize: uint32(st.Frsize),
	}, nil
}

func setxattrPath(path, name string, value []byte, flags uint32) error {
	return unix.Setxattr(path, name, value, int(flags))
}

func getxattrPath(path, name string, size uint32) (*flint.XattrResponse, error) {
	// A zero size is a probe for the value's length.
	if size == 0 {
		n, err := unix.Getxattr(path, name, nil)
		if err != nil {
			return nil, err
		}
		return &flint.XattrResponse{Size: uint32(n)}, nil
	}

	buf := make([]byte, size)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil {
		return nil, err
	}
	return &flint.XattrResponse{Size: uint32(n), Data: buf[:n]}, nil
}

func listxattrPath(path string, size uint32) (*flint.XattrResponse, error) {
	if size == 0 {
		n, err := unix.Listxattr(path, nil)
		if err != nil {
			return nil, err
		}
		return &flint.XattrResponse{Size: uint32(n)}, nil
	}

	buf := make([]byte, size)
	n, err := unix.Listxattr(path, buf)
	if err != nil {
		return nil, err
	}
	return &flint.XattrResponse{Size: uint32(n), Data: buf[:n]}, nil
}

func removexattrPath(path, name string) error {
	return unix.Removexattr(path, name)
}

func fallocateFile(f *os.File, mode uint32, offset, length uint64) error {
	return unix.Fallocate(int(f.Fd()), mode, int64(offset), int64(length))
}

func copyFileRange(src *os.File, srcOff uint64, dst *os.File, dstOff uint64, length uint64) (uint32, error) {
	roff, woff := int64(srcOff), int64(dstOff)
	n, err := unix.CopyFileRange(int(src.Fd()), &roff, int(dst.Fd()), &woff, int(length), 0)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func mknodPath(path string, mode os.FileMode, dev uint32) error {
	return unix.Mknod(path, toSysMode(mode), int(dev))
}

func accessPath(path string, mask uint32) error {
	return unix.Access(path, mask)
}

func renamePath(oldPath, newPath string, flags flint.RenameFlags) error {
	if flags == 0 {
		return os.Rename(oldPath, newPath)
	}
	return unix.Renameat2(unix.AT_FDCWD, oldPath, unix.AT_FDCWD, newPath, uint(flags))
}

func getlkFile(f *os.File, req *flint.LockRequest) (*flint.LockResponse, error) {
	fl := toFlock(req.Lock)
	if err := unix.FcntlFlock(f.Fd(), unix.F_GETLK, &fl); err != nil {
		return nil, err
	}
	return &flint.LockResponse{Lock: fromFlock(fl)}, nil
}

func setlkFile(f *os.File, req *flint.LockRequest) error {
	cmd := unix.F_SETLK
	if req.Sleep {
		cmd = unix.F_SETLKW
	}
	fl := toFlock(req.Lock)
	return unix.FcntlFlock(f.Fd(), cmd, &fl)
}

// offsetMax marks a lock extending to the end of the file.
const offsetMax = math.MaxInt64

func toFlock(l flint.Lock) unix.Flock_t {
	fl := unix.Flock_t{
		Whence: int16(io.SeekStart),
		Start:  int64(l.Start),
		Pid:    int32(l.PID),
	}
	if l.End < offsetMax {
		fl.Len = int64(l.End) - int64(l.Start) + 1
	}
	switch l.Type {
	case flint.LockTypeRead:
		fl.Type = unix.F_RDLCK
	case flint.LockTypeWrite:
		fl.Type = unix.F_WRLCK
	default:
		fl.Type = unix.F_UNLCK
	}
	return fl
}

func fromFlock(fl unix.Flock_t) flint.Lock {
	l := flint.Lock{
		Start: uint64(fl.Start),
		End:   offsetMax,
		PID:   uint32(fl.Pid),
	}
	if fl.Len > 0 {
		l.End = uint64(fl.Start + fl.Len - 1)
	}
	switch fl.Type {
	case unix.F_RDLCK:
		l.Type = flint.LockTypeRead
	case unix.F_WRLCK:
		l.Type = flint.LockTypeWrite
	default:
		l.Type = flint.LockTypeUnlock
	}
	return l
}

func toSysMode(in os.FileMode) uint32 {
	out := uint32(in.Perm())
	switch {
	case in&os.ModeCharDevice != 0 && in&os.ModeDevice != 0:
		out |= syscall.S_IFCHR
	case in&os.ModeDevice != 0:
		out |= syscall.S_IFBLK
	case in&os.ModeDir != 0:
		out |= syscall.S_IFDIR
	case in&os.ModeNamedPipe != 0:
		out |= syscall.S_IFIFO
	case in&os.ModeSymlink != 0:
		out |= syscall.S_IFLNK
	case in&os.ModeSocket != 0:
		out |= syscall.S_IFSOCK
	default:
		out |= syscall.S_IFREG
	}
	if in&os.ModeSetgid != 0 {
		out |= syscall.S_ISGID
	}
	if in&os.ModeSetuid != 0 {
		out |= syscall.S_ISUID
	}
	if in&os.ModeSticky != 0 {
		out |= syscall.S_ISVTX
	}
	return out
}
