package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// maxLineBytes caps a single log line; longer lines abort the read.
const maxLineBytes = 1024 * 1024

// pollInterval is how often a waiting Tail re-checks the file.
const pollInterval = 200 * time.Millisecond

// TailOptions selects which part of the log to read. A negative Offset
// reads the last Limit lines; a non-negative Offset reads everything
// appended since that byte position. When Wait is positive and the read
// finds nothing, Tail polls until new lines appear or Wait elapses.
type TailOptions struct {
	Offset int64
	Limit  int
	Wait   time.Duration
}

// TailResult carries the lines read and the byte offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads the log file at path per opts. A missing file is not an
// error: the result is empty with offset zero, and with Wait set Tail
// keeps polling in case the daemon creates the file in the meantime.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}

	var (
		lines  []string
		offset int64
		err    error
	)
	if opts.Offset < 0 {
		lines, offset, err = readTrailing(path, opts.Limit)
	} else {
		lines, offset, err = readAppended(path, opts.Offset)
	}
	if err != nil {
		return TailResult{}, err
	}
	if len(lines) == 0 && opts.Wait > 0 {
		return awaitAppended(ctx, path, offset, opts.Wait)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// openLog opens the log file and reports its size. A missing file yields
// a nil handle without error; callers treat the log as empty.
func openLog(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, 0, fmt.Errorf("log path %s is a directory", path)
	}
	return file, info.Size(), nil
}

func newLineScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

// readTrailing returns the last limit lines and the end-of-file offset.
func readTrailing(path string, limit int) ([]string, int64, error) {
	file, size, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if limit <= 0 {
		return nil, size, nil
	}

	ring := make([]string, limit)
	next, count := 0, 0
	scanner := newLineScanner(file)
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	lines := make([]string, count)
	start := (next - count + limit) % limit
	for i := range lines {
		lines[i] = ring[(start+i)%limit]
	}
	return lines, end, nil
}

// readAppended returns the lines written after offset and the new offset.
func readAppended(path string, offset int64) ([]string, int64, error) {
	file, size, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	// An offset past the current size means the file was truncated or
	// rotated; resume from the end rather than replaying the whole file.
	if offset < 0 || offset > size {
		offset = size
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	scanner := newLineScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}
	return lines, end, nil
}

// awaitAppended polls past offset until lines appear, wait elapses, or
// ctx is cancelled. Cancellation surfaces as ctx.Err() so follow loops
// can tell shutdown from an empty poll.
func awaitAppended(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}

		lines, next, err := readAppended(path, offset)
		if err != nil {
			return TailResult{Offset: offset}, err
		}
		offset = next
		if len(lines) > 0 {
			return TailResult{Lines: lines, Offset: offset}, nil
		}
		if !time.Now().Before(deadline) {
			return TailResult{Offset: offset}, nil
		}
	}
}
