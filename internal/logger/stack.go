package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Tag classifies a message the way the export report groups them.
type Tag byte

const (
	TagError   Tag = 'E'
	TagWarning Tag = 'W'
	TagInfo    Tag = 'I'
	TagDebug   Tag = 'D'
	TagSystem  Tag = 'S'
)

func (t Tag) level() zapcore.Level {
	switch t {
	case TagError:
		return zapcore.ErrorLevel
	case TagWarning:
		return zapcore.WarnLevel
	case TagDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Stack collects the errors and warnings of one export or import call so
// they can be summarised for the user at the end. A nil *Stack still logs.
type Stack struct {
	errors   []string
	warnings []string
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Print logs a message under tag and buffers it when it is an error or a
// warning. Formatting is skipped when the level is disabled and nothing
// needs buffering.
func (s *Stack) Print(tag Tag, format string, args ...any) {
	lvl := tag.level()
	buffered := s != nil && (tag == TagError || tag == TagWarning)
	if !buffered && !Enabled(lvl) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if buffered {
		switch tag {
		case TagError:
			s.errors = append(s.errors, msg)
		case TagWarning:
			s.warnings = append(s.warnings, msg)
		}
	}

	if ce := Log.Check(lvl, msg); ce != nil {
		if tag == TagSystem {
			ce.Write(zap.Bool("system", true))
		} else {
			ce.Write()
		}
	}
}

// Errorf logs and buffers an error.
func (s *Stack) Errorf(format string, args ...any) { s.Print(TagError, format, args...) }

// Warnf logs and buffers a warning.
func (s *Stack) Warnf(format string, args ...any) { s.Print(TagWarning, format, args...) }

// Infof logs an informational message.
func (s *Stack) Infof(format string, args ...any) { s.Print(TagInfo, format, args...) }

// Debugf logs a debug message.
func (s *Stack) Debugf(format string, args ...any) { s.Print(TagDebug, format, args...) }

// Errors returns the number of buffered errors.
func (s *Stack) Errors() int {
	if s == nil {
		return 0
	}
	return len(s.errors)
}

// Warnings returns the number of buffered warnings.
func (s *Stack) Warnings() int {
	if s == nil {
		return 0
	}
	return len(s.warnings)
}

// Messages returns copies of the buffered errors and warnings.
func (s *Stack) Messages() (errs, warns []string) {
	if s == nil {
		return nil, nil
	}
	return append([]string(nil), s.errors...), append([]string(nil), s.warnings...)
}

// Report formats the requested buckets under title, logs the summary and
// clears the reported buckets. It returns "" when there was nothing to say.
func (s *Stack) Report(title string, errors, warnings bool) string {
	if s == nil {
		return ""
	}

	var b strings.Builder
	if errors && len(s.errors) > 0 {
		fmt.Fprintf(&b, "%s: %d error(s)\n", title, len(s.errors))
		for _, e := range s.errors {
			fmt.Fprintf(&b, "  E %s\n", e)
		}
		s.errors = nil
	}
	if warnings && len(s.warnings) > 0 {
		fmt.Fprintf(&b, "%s: %d warning(s)\n", title, len(s.warnings))
		for _, w := range s.warnings {
			fmt.Fprintf(&b, "  W %s\n", w)
		}
		s.warnings = nil
	}

	out := b.String()
	if out != "" {
		Log.Info(strings.TrimRight(out, "\n"))
	}
	return out
}
