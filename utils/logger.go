/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

type Logger = logrus.Logger

const (
	FormatText = "text"
	FormatJSON = "json"

	timestampFormat = "2006-01-02 15:04:05.000"
)

// LogOptions configures every named logger of the process.
type LogOptions struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Format  string `mapstructure:"format" yaml:"format"`
	File    string `mapstructure:"file" yaml:"file"`
	NoColor bool   `mapstructure:"no_color" yaml:"no_color"`
}

var (
	loggerRegistryMu sync.RWMutex
	loggerRegistry   = map[string]*logrus.Logger{}

	logOptions = LogOptions{
		Level:  EnvDefaultString("QUARRY_LOG_LEVEL", "info"),
		Format: EnvDefaultString("QUARRY_LOG_FORMAT", FormatText),
	}
	logOutput io.Writer = os.Stdout
	logFile   *os.File
)

// NewLogger returns the logger registered under name, creating it with the
// current options on first use.
func NewLogger(name string) *logrus.Logger {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	if l, ok := loggerRegistry[name]; ok {
		return l
	}
	l := logrus.New()
	applyOptions(l, name)
	loggerRegistry[name] = l
	return l
}

// ConfigureLogging replaces the process log options and re-applies them to all
// registered loggers. A non-empty File is opened in append mode and receives
// the same records as stdout.
func ConfigureLogging(opts LogOptions) error {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()

	out := io.Writer(os.Stdout)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		if logFile != nil {
			_ = logFile.Close()
		}
		logFile = f
		out = io.MultiWriter(os.Stdout, f)
		// escape codes do not belong in files
		opts.NoColor = true
	}
	logOptions = opts
	logOutput = out
	for name, l := range loggerRegistry {
		applyOptions(l, name)
	}
	return nil
}

// ConfigureLogLevel sets the level of every registered logger.
func ConfigureLogLevel(level string) {
	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	logOptions.Level = level
	lvl := ParseLogLevel(level)
	for _, l := range loggerRegistry {
		l.SetLevel(lvl)
	}
}

// SetLoggerLevel changes a single named logger. It reports false when no
// logger is registered under name.
func SetLoggerLevel(name string, level string) bool {
	loggerRegistryMu.RLock()
	l, ok := loggerRegistry[name]
	loggerRegistryMu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLogLevel(level))
	return true
}

func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return logrus.WarnLevel
	case "":
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func applyOptions(l *logrus.Logger, name string) {
	l.SetOutput(logOutput)
	l.SetLevel(ParseLogLevel(logOptions.Level))
	if strings.EqualFold(logOptions.Format, FormatJSON) {
		l.SetFormatter(&JSONLogFormatter{LoggerName: name})
		return
	}
	l.SetFormatter(&ConsoleFormatter{LoggerName: name, NoColor: logOptions.NoColor, NameWidth: 10})
}

// ConsoleFormatter writes Log4j style lines:
//
//	2025-01-02 15:04:05.000    INFO 4711   --- [  DATABASE] : message key=value
type ConsoleFormatter struct {
	LoggerName      string
	TimestampFormat string
	NameWidth       int
	NoColor         bool
}

func (f *ConsoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	ts := f.TimestampFormat
	if ts == "" {
		ts = timestampFormat
	}
	lvl := f.paint(levelColor(entry.Level), fmt.Sprintf("%7s", strings.ToUpper(entry.Level.String())))
	pid := f.paint(color.FgMagenta, fmt.Sprintf("%-6d", os.Getpid()))
	name := f.paint(color.FgCyan, fmt.Sprintf("%*s", f.NameWidth, limitRunes(f.LoggerName, f.NameWidth)))

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s --- [%s] %s %s", entry.Time.Format(ts), lvl, pid, name, f.paint(color.Faint, ":"), entry.Message)
	for _, k := range sortedKeys(entry.Data) {
		fmt.Fprintf(&b, " %s=%v", f.paint(color.Faint, k), entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *ConsoleFormatter) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if f.NoColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprint(s)
}

func levelColor(level logrus.Level) color.Attribute {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return color.FgRed
	case logrus.WarnLevel:
		return color.FgYellow
	case logrus.InfoLevel:
		return color.FgGreen
	case logrus.DebugLevel:
		return color.FgBlue
	default:
		return color.FgMagenta
	}
}

// JSONLogFormatter is logrus' JSON output with the logger name added under
// "logger" and the message under "message".
type JSONLogFormatter struct {
	LoggerName string
}

func (f *JSONLogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields, len(entry.Data)+1)
	for k, v := range entry.Data {
		data[k] = v
	}
	data["logger"] = f.LoggerName
	dup := *entry
	dup.Data = data
	inner := &logrus.JSONFormatter{
		TimestampFormat: timestampFormat,
		FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
	}
	return inner.Format(&dup)
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limitRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func EnvDefaultString(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return cast.ToBool(v)
	}
	return def
}
