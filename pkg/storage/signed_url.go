package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DownloadSigner mints self-contained download tokens so export files can be
// fetched from a plain browser tab without a bearer header. A token embeds
// the job ID, the stored file name and an expiry, all covered by an HMAC.
type DownloadSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewDownloadSigner builds a signer. ttl bounds how long issued tokens stay
// valid.
func NewDownloadSigner(secret string, ttl time.Duration) *DownloadSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DownloadSigner{secret: []byte(secret), ttl: ttl}
}

// Sign issues a token for one stored file.
func (s *DownloadSigner) Sign(jobID, name string) (string, time.Time, error) {
	if jobID == "" || name == "" {
		return "", time.Time{}, fmt.Errorf("job id and file name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret not configured")
	}
	expiresAt := time.Now().Add(s.ttl)
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(jobID + "|" + strconv.FormatInt(expiresAt.Unix(), 10) + "|" + name))
	return payload + "." + s.mac(payload), expiresAt, nil
}

// Verify checks a token's signature and expiry and returns the embedded job
// ID and file name. allowExpired skips only the expiry check; cleanup paths
// use it to resolve files past their download window.
func (s *DownloadSigner) Verify(token string, allowExpired bool) (jobID, name string, expiresAt time.Time, err error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	if !hmac.Equal([]byte(s.mac(payload)), []byte(sig)) {
		return "", "", time.Time{}, fmt.Errorf("bad token signature")
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode token: %w", err)
	}
	fields := strings.SplitN(string(raw), "|", 3)
	if len(fields) != 3 {
		return "", "", time.Time{}, fmt.Errorf("malformed token payload")
	}
	unix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed token expiry")
	}
	expiresAt = time.Unix(unix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return fields[0], fields[2], expiresAt, nil
}

func (s *DownloadSigner) mac(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
