package utils

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// LogInterceptor implements io.Writer, tagging each line written to it with
// a monotonic sequence number and timestamp before forwarding to target.
// Used for the file-backed handler so log lines survive daemon restarts
// without relying on the console handler's own timestamping.
type LogInterceptor struct {
	target          io.Writer
	sequenceNumber  *atomic.Uint64
	interceptBuf    *bytes.Buffer
	interceptReader *bufio.Reader
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	buf := &bytes.Buffer{}
	return &LogInterceptor{
		target:          target,
		sequenceNumber:  &atomic.Uint64{},
		interceptBuf:    buf,
		interceptReader: bufio.NewReader(buf),
	}
}

func (i *LogInterceptor) writeFormattedLine(line []byte) (int, error) {
	lineNum := i.sequenceNumber.Add(1)
	totalWritten := 0

	n, err := io.WriteString(i.target, slog.Uint64("line", lineNum).String()+" ")
	totalWritten += n
	if err != nil {
		return totalWritten, err
	}

	n, err = io.WriteString(i.target, slog.String("time", time.Now().Format(time.RFC3339)).String()+" ")
	totalWritten += n
	if err != nil {
		return totalWritten, err
	}

	n, err = i.target.Write(line)
	totalWritten += n
	return totalWritten, err
}

func (i *LogInterceptor) Write(p []byte) (n int, err error) {
	if _, err = i.interceptBuf.Write(p); err != nil {
		return 0, err
	}

	totalWritten := 0
	scanner := bufio.NewScanner(i.interceptBuf)
	scanner.Split(bufio.ScanLines)
	for scanner.Scan() {
		n, err = i.writeFormattedLine([]byte(scanner.Text()))
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}
	}

	return totalWritten, nil
}

func (i *LogInterceptor) Close() error {
	remaining, err := io.ReadAll(i.interceptReader)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		_, err = i.writeFormattedLine(remaining)
	}
	return err
}
