package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultOrderNumberPrefix = "AL"
	sequenceDigits           = 3
	maxSequence              = 999
)

// OrderNumberPrefix is the part of an order number shared by every order of day.
func OrderNumberPrefix(prefix string, day time.Time) string {
	return prefix + day.Format("060102")
}

// NextOrderNumber returns the number following last for the given day. last is the
// highest number already issued with the same day prefix, or "" if none.
func NextOrderNumber(prefix string, day time.Time, last string) (string, error) {
	dayPrefix := OrderNumberPrefix(prefix, day)
	seq := 1
	if last != "" {
		if !strings.HasPrefix(last, dayPrefix) || len(last) != len(dayPrefix)+sequenceDigits {
			return "", fmt.Errorf("order number %q does not belong to %s", last, dayPrefix)
		}
		n, err := strconv.Atoi(last[len(dayPrefix):])
		if err != nil {
			return "", fmt.Errorf("parse sequence of %q: %w", last, err)
		}
		seq = n + 1
	}
	if seq > maxSequence {
		return "", ErrSequenceExhausted
	}
	return fmt.Sprintf("%s%0*d", dayPrefix, sequenceDigits, seq), nil
}
