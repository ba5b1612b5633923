package entity

import (
	"database/sql"
	"time"
)

const RoleUser = "user"

// User is a single account row. VerificationToken and PasswordResetToken hold
// the one currently-valid token for their flow; overwriting them invalidates
// anything issued earlier, even if that token is still cryptographically valid.
type User struct {
	ID                 uint64
	Email              string
	PasswordHash       string
	Role               string
	IsVerified         bool
	VerificationToken  sql.NullString
	PasswordResetToken sql.NullString
	CreatedAt          time.Time
}

// UserCV is an uploaded résumé. The binary lives in object storage under S3Key;
// the row only carries metadata.
type UserCV struct {
	ID           string
	UserID       uint64
	S3Key        string
	OriginalName string
	CreatedAt    time.Time
}
