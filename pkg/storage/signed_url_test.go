package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignerSignAndVerify(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("job-1", "reports/attendance.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	jobID, path, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "reports/attendance.csv", path)
}

func TestSignerRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Sign("job-1", "reports/attendance.csv")
	require.NoError(t, err)

	_, _, err = signer.Verify(token + "x")
	require.Error(t, err)

	other := NewSigner("other-secret", time.Hour)
	_, _, err = other.Verify(token)
	require.Error(t, err)
}

func TestSignerRejectsExpired(t *testing.T) {
	signer := NewSigner("secret", -time.Hour)
	signer.ttl = time.Nanosecond
	token, _, err := signer.Sign("job-1", "reports/attendance.csv")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, _, err = signer.Verify(token)
	require.Error(t, err)
}
