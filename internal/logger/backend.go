package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags.
const (
	SubsystemNode   = "CMX"
	SubsystemMarket = "MRKT"
	SubsystemLedger = "LDGR"
	SubsystemABCI   = "ABCI"
	SubsystemHTTP   = "HTTP"
	SubsystemRPC    = "TMRPC"
)

const (
	recentMessages  = 500
	rotateThreshold = 10 * 1024 // KB
	maxRolls        = 3
)

// logWriter implements an io.Writer that outputs to standard output, the
// rotating log file when one is initialized, and the recent-message ring.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	recent.Write(p)

	rotatorMu.Lock()
	defer rotatorMu.Unlock()
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = slog.NewBackend(logWriter{})

	recent = New(recentMessages)

	rotatorMu  sync.Mutex
	logRotator *rotator.Rotator

	subsystemLoggers = map[string]slog.Logger{
		SubsystemNode:   backendLog.Logger(SubsystemNode),
		SubsystemMarket: backendLog.Logger(SubsystemMarket),
		SubsystemLedger: backendLog.Logger(SubsystemLedger),
		SubsystemABCI:   backendLog.Logger(SubsystemABCI),
		SubsystemHTTP:   backendLog.Logger(SubsystemHTTP),
		SubsystemRPC:    backendLog.Logger(SubsystemRPC),
	}
)

// InitLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory. It must be called before the
// package-global log rotater variables are used.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	r, err := rotator.New(logFile, rotateThreshold, false, maxRolls)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	rotatorMu.Lock()
	logRotator = r
	rotatorMu.Unlock()
	return nil
}

// Close flushes and closes the log rotator, if any.
func Close() {
	rotatorMu.Lock()
	defer rotatorMu.Unlock()
	if logRotator != nil {
		logRotator.Close()
		logRotator = nil
	}
}

// Subsystem returns the logger for the given subsystem tag. Unknown tags get
// a disabled logger.
func Subsystem(subsystem string) slog.Logger {
	if l, ok := subsystemLoggers[subsystem]; ok {
		return l
	}
	return slog.Disabled
}

// Recent returns the in-memory ring of recent log lines.
func Recent() *Logger {
	return recent
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level. It returns an error for an unknown level name.
func SetLogLevels(logLevel string) error {
	level, ok := slog.LevelFromString(logLevel)
	if !ok {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	for _, l := range subsystemLoggers {
		l.SetLevel(level)
	}
	return nil
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}
