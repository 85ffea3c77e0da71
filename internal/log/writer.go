package log

import (
	"bufio"
	"bytes"

	"github.com/charmbracelet/log"
)

// Writer forwards every line written to it as a debug message on Log.
// Used to surface the stderr of oracle processes.
type Writer struct {
	Log *log.Logger
}

func (l *Writer) Write(p []byte) (n int, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(p))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			l.Log.Debug(line)
		}
	}

	return len(p), nil
}
