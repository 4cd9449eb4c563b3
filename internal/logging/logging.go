// Package logging provides logging utilities for the telnet echo servers.
package logging

import (
	"fmt"
	"log"
	"time"
)

// DebugEnabled controls whether Debug() produces output.
// Set via -debug flag or DEBUG=1 environment variable.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

func init() {
	// The console log format below is self-timestamped
	// ("[YYYY-MM-DD HH:MM:SS]" + mode tag), so the standard logger's own
	// date/time prefix would be redundant.
	log.SetFlags(0)
}

// modeTagger is satisfied by telnet.Mode; kept as a narrow interface here
// so this package does not need to import the telnet package.
type modeTagger interface {
	String() string
}

func line(level string, mode modeTagger, format string, args ...any) string {
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	return fmt.Sprintf("[%s] %s %s: %s", ts, mode.String(), level, msg)
}

// Infof logs an informational line tagged with the given mode, in the
// "[YYYY-MM-DD HH:MM:SS] [MODE TAG] INFO: message" console format.
func Infof(mode modeTagger, format string, args ...any) {
	log.Print(line("INFO", mode, format, args...))
}

// Warnf logs a recoverable-condition line tagged with the given mode.
func Warnf(mode modeTagger, format string, args ...any) {
	log.Print(line("WARN", mode, format, args...))
}

// Errorf logs an error-condition line tagged with the given mode.
func Errorf(mode modeTagger, format string, args ...any) {
	log.Print(line("ERROR", mode, format, args...))
}
