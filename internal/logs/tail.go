package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultFollowInterval = 250 * time.Millisecond
	maxLineBytes          = 1024 * 1024
)

// Position identifies a read cursor inside a specific log file.
type Position struct {
	// Target is the resolved file the offset belongs to.
	Target string
	Offset int64
}

// Last returns up to limit trailing lines of path. A missing file yields no
// lines and a zero position.
func Last(path string, limit int) ([]string, Position, error) {
	target := resolve(path)
	file, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Position{Target: target}, nil
		}
		return nil, Position{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, Position{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, Position{}, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, Position{Target: target, Offset: info.Size()}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scanLines(file, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, Position{}, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, Position{Target: target, Offset: offset}, nil
}

// Follow delivers lines appended to path after pos until ctx is done. It
// returns nil when the context is cancelled.
func Follow(ctx context.Context, path string, pos Position, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = defaultFollowInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, pos, emit)
		if err != nil {
			return err
		}
		pos = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, pos Position, emit func(string)) (Position, error) {
	target := resolve(path)
	if target != pos.Target {
		pos = Position{Target: target}
	}
	file, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Position{Target: target}, nil
		}
		return pos, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return pos, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < pos.Offset {
		pos.Offset = 0
	}
	if info.Size() == pos.Offset {
		return pos, nil
	}
	if _, err := file.Seek(pos.Offset, io.SeekStart); err != nil {
		return pos, fmt.Errorf("seek log file: %w", err)
	}

	read, err := scanLines(file, emit)
	if err != nil {
		return pos, err
	}
	pos.Offset += read
	return pos, nil
}

// scanLines feeds complete lines to fn and returns the bytes consumed. A
// trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			text := line[:len(line)-1]
			if n := len(text); n > 0 && text[n-1] == '\r' {
				text = text[:n-1]
			}
			if len(text) > maxLineBytes {
				text = text[:maxLineBytes]
			}
			fn(text)
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}

func resolve(path string) string {
	if target, err := filepath.EvalSymlinks(path); err == nil {
		return target
	}
	return path
}
