// Package users holds the account directory consumed by mail broadcasts.
package users

// User represents a registered account.
type User struct {
	UserID     int64  `json:"userID"`
	UserEmail  string `json:"userEmail"`
	Username   string `json:"username"`
	UserStatus int    `json:"userStatus"`
}

// Account statuses.
const (
	StatusInactive = 0
	StatusActive   = 1
)
