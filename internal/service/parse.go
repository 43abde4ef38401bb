package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Jenderlion/Quiz-bot/internal/errs"
)

// ParseBanDuration parses the compact <integer><unit> grammar used by ban
// commands, e.g. "30s", "5m", "12h", "7d".
func ParseBanDuration(raw string) (time.Duration, error) {
	if len(raw) < 2 {
		return 0, fmt.Errorf("duration %q: %w", raw, errs.ErrBadDuration)
	}

	value, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("duration %q: %w", raw, errs.ErrBadDuration)
	}

	switch raw[len(raw)-1] {
	case 's':
		return time.Duration(value) * time.Second, nil
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("duration %q: %w", raw, errs.ErrBadDuration)
	}
}

// ParseBoolStrict accepts exactly the literals "true" and "false". The flags
// it guards (quiz visibility, mailing opt-in) come from user input, so
// anything else is a validation error, never evaluated or coerced.
func ParseBoolStrict(raw string) (bool, error) {
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("flag %q: %w", raw, errs.ErrBadBool)
	}
}
