package model

import "time"

// BackupCodeState is Unused until the code is consumed once.
type BackupCodeState uint8

const (
	BackupCodeUnused BackupCodeState = iota
	BackupCodeUsed
)

// BackupCodeBatchSize is the number of codes issued per batch.
const BackupCodeBatchSize = 10

// BackupCode is a hashed single-use recovery code.
type BackupCode struct {
	ID        string
	AccountID string
	CodeHash  string
	Used      bool
	UsedAt    *time.Time
}

func (c *BackupCode) State() BackupCodeState {
	if c.Used {
		return BackupCodeUsed
	}
	return BackupCodeUnused
}

// MarkUsed transitions Unused to Used. It returns false if the code was
// already used, leaving it untouched.
func (c *BackupCode) MarkUsed(now time.Time) bool {
	if c.Used {
		return false
	}
	c.Used = true
	c.UsedAt = &now
	return true
}
