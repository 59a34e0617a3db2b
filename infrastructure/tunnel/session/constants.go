package session

import (
	"time"

	"noisevpn/infrastructure/cryptography/noise"
)

// RejectAfterTime and RekeyAfterTime mirror the noise package's wire-level
// second counts (§4.8) as time.Duration, for use against time.Time/time.Since.
const (
	RejectAfterTime  = time.Duration(noise.RejectAfterTime) * time.Second
	RekeyAfterTime   = time.Duration(noise.RekeyAfterTime) * time.Second
	RekeyTimeout     = time.Duration(noise.RekeyTimeout) * time.Second
	KeepaliveTimeout = time.Duration(noise.KeepaliveTimeout) * time.Second
)
