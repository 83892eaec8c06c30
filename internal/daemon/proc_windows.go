//go:build windows

package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
)

type daemonLock struct {
	f    *os.File
	path string
}

// acquireLock creates the lock file exclusively; a leftover file from a
// crashed daemon must be removed by hand (or `pabellon nuke`).
func acquireLock(lockFile string) (*daemonLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockFile), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errAlreadyRunning
		}
		return nil, err
	}
	return &daemonLock{f: f, path: lockFile}, nil
}

func (l *daemonLock) release() {
	if l == nil || l.f == nil {
		return
	}
	_ = l.f.Close()
	_ = os.Remove(l.path)
}

func setDaemonSysProcAttr(*exec.Cmd) {}

// processExists trusts the pid file; there is no signal-0 probe on Windows.
func processExists(pid int) bool {
	return pid > 0
}

func signalTerm(proc *os.Process) error {
	return proc.Kill()
}
