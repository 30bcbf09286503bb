package shared

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// ConsoleLogger implementation
type ConsoleLogger struct {
	mu        sync.Mutex
	out       io.Writer
	debugMode bool
}

func NewConsoleLogger() *ConsoleLogger {
	return NewConsoleLoggerTo(os.Stdout)
}

// NewConsoleLoggerTo writes to w instead of stdout.
func NewConsoleLoggerTo(w io.Writer) *ConsoleLogger {
	return &ConsoleLogger{out: w}
}

func (cl *ConsoleLogger) print(c *color.Color, prefix, message string, args ...interface{}) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	line := prefix + fmt.Sprintf(message, args...) + "\n"
	if c == nil {
		fmt.Fprint(cl.out, line)
		return
	}
	c.Fprint(cl.out, line)
}

func (cl *ConsoleLogger) Info(message string, args ...interface{}) {
	cl.print(ColorInfo, "", message, args...)
}

func (cl *ConsoleLogger) Warning(message string, args ...interface{}) {
	cl.print(ColorWarning, "⚠️ ", message, args...)
}

func (cl *ConsoleLogger) Error(message string, args ...interface{}) {
	cl.print(ColorError, "❌ ", message, args...)
}

func (cl *ConsoleLogger) Debug(message string, args ...interface{}) {
	if !cl.debugMode {
		return
	}
	cl.print(nil, "🐛 DEBUG: ", message, args...)
}

func (cl *ConsoleLogger) Success(message string, args ...interface{}) {
	cl.print(ColorSuccess, "✅ ", message, args...)
}

func (cl *ConsoleLogger) SetDebugMode(enabled bool) {
	cl.mu.Lock()
	cl.debugMode = enabled
	cl.mu.Unlock()
}
