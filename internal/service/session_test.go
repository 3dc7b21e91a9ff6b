package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/tunetraits/internal/domain"
)

func TestSessions_CreateAndResolve(t *testing.T) {
	reg := NewSessions(time.Hour, false).WithClock(func() time.Time { return testNow })

	s := reg.Create()
	_, err := domain.ParseIdentity(s.Identity().String())
	require.NoError(t, err)

	got, err := reg.Resolve(s.Identity())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = reg.Resolve("unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessions_Expiry(t *testing.T) {
	now := testNow
	reg := NewSessions(30*time.Minute, false).WithClock(func() time.Time { return now })
	s := reg.Create()
	other := reg.Create()

	now = now.Add(20 * time.Minute)
	_, err := reg.Resolve(s.Identity())
	require.NoError(t, err, "activity keeps the session alive")

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, reg.Sweep())
	_, err = reg.Resolve(other.Identity())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = reg.Resolve(s.Identity())
	assert.NoError(t, err)
}

func TestSessions_Resumable(t *testing.T) {
	reg := NewSessions(time.Minute, true).WithClock(func() time.Time { return testNow })

	s, err := reg.Resolve("returning-user")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("returning-user"), s.Identity())
	assert.Empty(t, s.CompletedStages())
	assert.Equal(t, 1, reg.Len())
}

func TestSessions_LookupNeverAdopts(t *testing.T) {
	reg := NewSessions(time.Minute, true).WithClock(func() time.Time { return testNow })

	_, err := reg.Lookup("returning-user")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, reg.Len())

	s, err := reg.Resolve("returning-user")
	require.NoError(t, err)
	got, err := reg.Lookup("returning-user")
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestSession_Credential(t *testing.T) {
	s := NewSession("u1", testNow)
	_, ok := s.Credential()
	assert.False(t, ok)

	s.SetCredential(domain.StreamingCredential{AccessToken: "a"})
	cred, ok := s.Credential()
	assert.True(t, ok)
	assert.Equal(t, "a", cred.AccessToken)
}
