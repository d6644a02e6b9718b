package cache

import (
	"time"
)

// Artifact represents a cached rendered card.
type Artifact struct {
	// Data is the raw image bytes
	Data []byte `json:"data"`

	// WrittenAt is when the artifact was stored
	WrittenAt time.Time `json:"written_at"`

	// ExpiresAt is WrittenAt plus the TTL given at write time
	ExpiresAt time.Time `json:"expires_at"`
}

// newArtifact builds an artifact written at now that lives for ttl.
func newArtifact(data []byte, now time.Time, ttl time.Duration) *Artifact {
	return &Artifact{
		Data:      data,
		WrittenAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Size returns the artifact size in bytes.
func (a *Artifact) Size() int64 {
	return int64(len(a.Data))
}

// IsExpiredAt reports whether the artifact is past its TTL at the given instant.
// An artifact is served strictly before ExpiresAt.
func (a *Artifact) IsExpiredAt(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// IsExpired returns true if the artifact has expired.
func (a *Artifact) IsExpired() bool {
	return a.IsExpiredAt(time.Now())
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (a *Artifact) TTL() time.Duration {
	ttl := time.Until(a.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
