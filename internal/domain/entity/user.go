package entity

import (
	"regexp"
	"time"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)

// User is a read-only directory record. Chat code never mutates it.
type User struct {
	UID       string    `json:"uid" firestore:"uid"`
	Username  string    `json:"username" firestore:"username"`
	Fullname  string    `json:"fullname" firestore:"fullname"`
	Bio       string    `json:"bio,omitempty" firestore:"bio,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty" firestore:"profImg,omitempty"`
	Active    bool      `json:"active" firestore:"active"`
	LastSeen  time.Time `json:"last_seen" firestore:"timeStamp"`
}

// DisplayName falls back to the username for profiles without a full name.
func (u *User) DisplayName() string {
	if u.Fullname != "" {
		return u.Fullname
	}
	return u.Username
}

func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Identity is the authenticated caller as supplied by the auth layer.
type Identity struct {
	UID      string
	Username string
}

type Presence struct {
	Username string    `json:"username"`
	Active   bool      `json:"active"`
	LastSeen time.Time `json:"last_seen"`
}
