package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Eight-level severity scale. Debug, Info, Warning and Error map onto the
// slog built-ins so plain slog calls keep working.
const (
	LevelDebug     = slog.LevelDebug
	LevelInfo      = slog.LevelInfo
	LevelNotice    = slog.Level(2)
	LevelWarning   = slog.LevelWarn
	LevelError     = slog.LevelError
	LevelCritical  = slog.Level(12)
	LevelAlert     = slog.Level(16)
	LevelEmergency = slog.Level(20)
)

var levelNames = map[slog.Level]string{
	LevelDebug:     "debug",
	LevelInfo:      "info",
	LevelNotice:    "notice",
	LevelWarning:   "warning",
	LevelError:     "error",
	LevelCritical:  "critical",
	LevelAlert:     "alert",
	LevelEmergency: "emergency",
}

// LevelName returns the lower-case name of a level on the eight-level scale.
// Levels between two named ones render as the lower name plus an offset,
// the same way slog does ("error+1").
func LevelName(l slog.Level) string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	base := LevelDebug
	for lvl := range levelNames {
		if lvl <= l && lvl > base {
			base = lvl
		}
	}
	if l < LevelDebug {
		return fmt.Sprintf("debug%d", l-LevelDebug)
	}
	return fmt.Sprintf("%s+%d", levelNames[base], l-base)
}

// ParseLevel converts a level name into a slog.Level.
// Accepts the eight names case-insensitively plus "warn" as an alias.
func ParseLevel(s string) (slog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warn" {
		return LevelWarning, nil
	}
	for lvl, n := range levelNames {
		if n == name {
			return lvl, nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// replaceLevel renders the level attribute with the eight-level names.
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(LevelName(lvl))
		}
	}
	return a
}

func Notice(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelNotice, msg, args...)
}

func Critical(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelCritical, msg, args...)
}

func Alert(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelAlert, msg, args...)
}

func Emergency(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelEmergency, msg, args...)
}
