package fuse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/flintfs/flint"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// MountOption customizes the filesystem mount.
type MountOption func(*mountConfig)

type mountConfig struct{ options map[string]string }

// getOptions converts the mount options to be compatible with fusermount's
// `-o` flag.
func (m mountConfig) getOptions() string {
	opts := make([]string, 0, len(m.options))
	for k, v := range m.options {
		opt := k
		if v != "" {
			opt += "=" + v
		}
		// Escape characters fusermount treats specially.
		opt = strings.ReplaceAll(opt, `\`, `\\`)
		opt = strings.ReplaceAll(opt, `,`, `\,`)
		opts = append(opts, opt)
	}
	return strings.Join(opts, ",")
}

// FSName sets the fsname that is visible in the list of mounted
// filesystems.
func FSName(name string) MountOption {
	return func(mc *mountConfig) { mc.options["fsname"] = name }
}

// Subtype sets the subtype of the mount. The full type appears as
// `fuse.<subtype>`; the main type cannot be changed.
func Subtype(subtype string) MountOption {
	return func(mc *mountConfig) { mc.options["subtype"] = subtype }
}

// AllowOther allows other users to access the filesystem.
func AllowOther() MountOption {
	return func(mc *mountConfig) { mc.options["allow_other"] = "" }
}

// AllowDev enables interpreting character or block special devices on the
// filesystem.
func AllowDev() MountOption {
	return func(mc *mountConfig) { mc.options["dev"] = "" }
}

// AllowSUID allows SUID and SGID bits to take effect.
func AllowSUID() MountOption {
	return func(mc *mountConfig) { mc.options["suid"] = "" }
}

// DefaultPermissions asks the kernel to enforce access control based on
// file modes. Without this option the driver itself must implement
// permission checking.
func DefaultPermissions() MountOption {
	return func(mc *mountConfig) { mc.options["default_permissions"] = "" }
}

// ReadOnly marks the mount as read-only.
func ReadOnly() MountOption {
	return func(mc *mountConfig) { mc.options["ro"] = "" }
}

// AllowNonEmptyMount allows mounting on top of a non-empty directory.
func AllowNonEmptyMount() MountOption {
	return func(mc *mountConfig) { mc.options["nonempty"] = "" }
}

// Mount creates a mountpoint at dir and returns the Transport carrying FUSE
// requests for it. Closing the Transport unmounts dir.
func Mount(l log.Logger, dir string, opts ...MountOption) (flint.Transport, error) {
	if l == nil {
		l = log.NewNopLogger()
	}

	cfg := mountConfig{options: map[string]string{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := mount(l, dir, &cfg)
	if err != nil {
		return nil, err
	}

	return &devTransport{log: l, f: f, onClose: func() {
		if err := Unmount(dir); err != nil {
			level.Error(l).Log("msg", "failed to automatically unmount on close", "err", err)
		} else {
			level.Debug(l).Log("msg", "volume unmounted", "dir", dir)
		}
	}}, nil
}

// Unmount lazily unmounts the filesystem at dir.
func Unmount(dir string) error {
	cmd := exec.Command("fusermount", "-z", "-u", dir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		output = bytes.TrimRight(output, "\n")
		if len(output) > 0 {
			err = fmt.Errorf("%w: %s", err, string(output))
		}
	}
	return err
}

// mount runs the fusermount handshake: a temporary socket pair is created,
// one end is handed to fusermount, and the /dev/fuse file descriptor comes
// back over a control message on the other end.
func mount(l log.Logger, dir string, conf *mountConfig) (fd *os.File, err error) {
	fds, err := syscall.Socketpair(syscall.AF_FILE, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair error: %v", err)
	}

	writeFile := os.NewFile(uintptr(fds[0]), "fusermount-child-writes")
	defer writeFile.Close()

	readFile := os.NewFile(uintptr(fds[1]), "fusermount-parent-reads")
	defer readFile.Close()

	cmd := exec.Command(
		"fusermount",
		"-o", conf.getOptions(),
		"--",
		dir,
	)
	cmd.ExtraFiles = []*os.File{writeFile}
	cmd.Env = append(os.Environ(), "_FUSE_COMMFD=3")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("fusermount stdout: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("fusermount stderr: %v", err)
	}

	// Since we're using StdoutPipe and StderrPipe, we must fully read their
	// contents before calling cmd.Wait().
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("fusermount: %v", err)
	}

	var pipeWait sync.WaitGroup
	pipeWait.Add(2)

	readLogs := func(r io.Reader, defLevel level.Value) {
		defer pipeWait.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			leveled := log.WithPrefix(l, level.Key(), defLevel)
			leveled.Log("msg", scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			level.Error(l).Log("msg", "failed to read fusermount output", "err", err)
		}
	}
	go readLogs(stdout, level.DebugValue())
	go readLogs(stderr, level.WarnValue())

	pipeWait.Wait()
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("fusermount failed")
	}

	// The read half of our socket pair should now be usable for getting
	// control messages.
	c, err := net.FileConn(readFile)
	if err != nil {
		return nil, fmt.Errorf("FileConn from fusermount socket: %v", err)
	}
	defer c.Close()
	uc, ok := c.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("unexpected FileConn type; expected UnixConn, got %T", c)
	}

	// Read from the socket to finish setting up the connection. We're
	// looking for a control message carrying the file descriptor of our
	// /dev/fuse connection. Only the out-of-band data matters here; the
	// buffer is oversized a little for compatibility.
	var oob = make([]byte, 32)
	_, oobLen, _, _, _ := uc.ReadMsgUnix(make([]byte, 32), oob)

	controlMsgs, err := syscall.ParseSocketControlMessage(oob[:oobLen])
	if err != nil {
		return nil, fmt.Errorf("ParseSocketControlMessage: %v", err)
	}
	if len(controlMsgs) != 1 {
		return nil, fmt.Errorf("expected 1 SocketControlMessage; got scms = %#v", controlMsgs)
	}

	controlFiles, err := syscall.ParseUnixRights(&controlMsgs[0])
	if err != nil {
		return nil, fmt.Errorf("syscall.ParseUnixRights: %v", err)
	}
	if len(controlFiles) != 1 {
		return nil, fmt.Errorf("wanted 1 fd; got %#v", controlFiles)
	}
	return os.NewFile(uintptr(controlFiles[0]), "/dev/fuse"), nil
}
