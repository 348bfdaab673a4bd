package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_RefreshSlot(t *testing.T) {
	u := &User{ID: "u1"}
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	u.SetRefreshToken("tok", exp)
	require.NotNil(t, u.RefreshToken)
	require.NotNil(t, u.RefreshTokenExpiresAt)
	assert.Equal(t, "tok", *u.RefreshToken)
	assert.True(t, exp.Equal(*u.RefreshTokenExpiresAt))

	u.SetRefreshToken("tok2", exp.Add(time.Hour))
	assert.Equal(t, "tok2", *u.RefreshToken)
	assert.True(t, exp.Add(time.Hour).Equal(*u.RefreshTokenExpiresAt))
}

func TestUser_CloneIsDeep(t *testing.T) {
	u := &User{ID: "u1", UserName: "alice", Version: 3}
	u.SetRefreshToken("tok", time.Unix(100, 0))

	c := u.Clone()
	*c.RefreshToken = "other"
	*c.RefreshTokenExpiresAt = time.Unix(200, 0)
	c.Version = 4

	assert.Equal(t, "tok", *u.RefreshToken)
	assert.Equal(t, int64(100), u.RefreshTokenExpiresAt.Unix())
	assert.Equal(t, int64(3), u.Version)

	empty := (&User{ID: "u2"}).Clone()
	assert.Nil(t, empty.RefreshToken)
	assert.Nil(t, empty.RefreshTokenExpiresAt)
}
