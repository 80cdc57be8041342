package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

const (
	lockFileName = "hopper.lock"
	pidFileName  = "hopper.pid"
)

// Lock enforces single-instance execution through an advisory file lock,
// with a pid file beside it naming the owner.
type Lock struct {
	flock   *flock.Flock
	pidPath string
}

// NewLock builds the lock rooted in dir. Both run-once and daemon modes take
// the same lock, so they exclude each other as well as themselves.
func NewLock(dir string) *Lock {
	return &Lock{
		flock:   flock.New(filepath.Join(dir, lockFileName)),
		pidPath: filepath.Join(dir, pidFileName),
	}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.flock.Path()
}

// Acquire takes the lock without blocking and records the owning pid.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another hopper instance is already running")
	}
	if err := os.WriteFile(l.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = l.flock.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the pid file and drops the lock.
func (l *Lock) Release() error {
	_ = os.Remove(l.pidPath)
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Probe reports whether another process currently holds the instance lock in
// dir, along with the recorded pid when readable. It never blocks; a probe
// that manages to take the lock releases it immediately.
func Probe(dir string) (bool, int) {
	fl := flock.New(filepath.Join(dir, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return false, 0
	}
	if ok {
		_ = fl.Unlock()
		return false, 0
	}
	pid := 0
	if data, err := os.ReadFile(filepath.Join(dir, pidFileName)); err == nil {
		pid, _ = strconv.Atoi(strings.TrimSpace(string(data)))
	}
	return true, pid
}
