package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDownloadSignerRoundTrip(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("job-1", "job-1/week_3_scores.xlsx")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	jobID, name, parsedExpiry, err := signer.Verify(token, false)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "job-1/week_3_scores.xlsx", name)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestDownloadSignerRejectsTampering(t *testing.T) {
	signer := NewDownloadSigner("secret", time.Hour)
	token, _, err := signer.Sign("job-1", "job-1/report.xlsx")
	require.NoError(t, err)

	payload, sig, ok := strings.Cut(token, ".")
	require.True(t, ok)
	forged := payload + "x." + sig
	_, _, _, err = signer.Verify(forged, false)
	require.Error(t, err)

	other := NewDownloadSigner("different-secret", time.Hour)
	_, _, _, err = other.Verify(token, false)
	require.Error(t, err)
}

func TestDownloadSignerExpiry(t *testing.T) {
	signer := &DownloadSigner{secret: []byte("secret"), ttl: -time.Minute}
	token, _, err := signer.Sign("job-1", "job-1/report.xlsx")
	require.NoError(t, err)

	_, _, _, err = signer.Verify(token, false)
	require.Error(t, err)

	jobID, name, _, err := signer.Verify(token, true)
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)
	require.Equal(t, "job-1/report.xlsx", name)
}
