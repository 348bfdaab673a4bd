// Package models holds the server-side domain records shared by services,
// repositories and transports.
package models

import "time"

// User is the persisted account record.
//
// RefreshToken and RefreshTokenExpiresAt are both nil or both set. A user
// holds at most one live refresh token; issuing a new one overwrites it.
// Version is the optimistic-concurrency counter checked by Repository.Save.
type User struct {
	ID                    string
	UserName              string
	PasswordHash          string
	Role                  string
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
	Version               int64
	CreatedAt             time.Time
}

// SetRefreshToken replaces the refresh-token slot.
func (u *User) SetRefreshToken(token string, expiresAt time.Time) {
	u.RefreshToken = &token
	u.RefreshTokenExpiresAt = &expiresAt
}

// Clone returns a deep copy, so stores can hand out records without sharing
// the pointer fields.
func (u *User) Clone() *User {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	if u.RefreshTokenExpiresAt != nil {
		e := *u.RefreshTokenExpiresAt
		c.RefreshTokenExpiresAt = &e
	}
	return &c
}
