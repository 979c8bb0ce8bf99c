package tiffcore

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// memFile is a minimal io.ReadWriteSeeker + io.ReaderAt + Truncate
// backed by an in-memory byte slice, used so reader/writer tests don't
// need real files on disk.
type memFile struct {
	buf []byte
	pos int64
}

func newMemFile() *memFile { return &memFile{} }

func (m *memFile) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.pos:end], p)
	m.pos = end
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = m.pos + offset
	case io.SeekEnd:
		target = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memFile: bad whence")
	}
	if target < 0 {
		return 0, errors.New("memFile: negative position")
	}
	m.pos = target
	return m.pos, nil
}

func (m *memFile) Truncate(size int64) error {
	if size <= int64(len(m.buf)) {
		m.buf = m.buf[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.buf)
	m.buf = grown
	return nil
}

// stubLogger records every message passed to it, so a test can assert
// that a Reader/Writer's injected Logger collaborator is actually
// exercised rather than decorative.
type stubLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *stubLogger) Debugf(format string, args ...interface{}) { l.record(format, args...) }
func (l *stubLogger) Infof(format string, args ...interface{})  { l.record(format, args...) }
func (l *stubLogger) Warnf(format string, args ...interface{})  { l.record(format, args...) }

func (l *stubLogger) record(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func (l *stubLogger) hasMessageContaining(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}
