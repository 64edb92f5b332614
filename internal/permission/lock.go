package permission

import (
	"os"
	"syscall"
)

// instanceLock is an advisory flock marker guarding the permission store
// against a second running instance. Losing the race is a warning, not an
// error: the store is still usable, the operator just gets told.
type instanceLock struct {
	path string
	file *os.File
}

func newInstanceLock(path string) *instanceLock {
	return &instanceLock{path: path + ".lock"}
}

// TryAcquire attempts a non-blocking exclusive lock. Returns false when
// another process holds it.
func (l *instanceLock) TryAcquire() bool {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return false
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return false
	}

	l.file = f
	return true
}

// Release drops the lock and removes the marker file.
func (l *instanceLock) Release() {
	if l.file == nil {
		return
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
}
