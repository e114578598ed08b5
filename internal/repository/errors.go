package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrActiveSessionExists is returned when another non-superseded session already
// holds the submission's active slot.
var ErrActiveSessionExists = errors.New("active grading session already exists")

// ErrStatusConflict is returned when a conditional status update matched no row,
// meaning another writer changed the session first.
var ErrStatusConflict = errors.New("grading session status changed concurrently")

// ErrSessionNotActive is returned when a record update targets a session that is
// no longer IN_PROGRESS.
var ErrSessionNotActive = errors.New("grading session is not in progress")

// ErrRecordsPending is returned by Complete when a record still has no score.
var ErrRecordsPending = errors.New("grading session has unscored records")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "duplicate") || strings.Contains(low, "unique")
}
