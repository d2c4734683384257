package session

import "time"

// Role marks who produced a chat exchange entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleBot   Role = "bot"
	RoleError Role = "error"
)

// Exchange is one entry of the intervention chat transcript. Timestamp is
// client-observed creation time, not server time.
type Exchange struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
