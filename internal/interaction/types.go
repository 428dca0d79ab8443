package interaction

import "time"

// #region entry
// Entry is a single row in the interactions table.
type Entry struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	TextLength int       `json:"text_length"`
	CreatedAt  time.Time `json:"timestamp"`
}

// #endregion entry
