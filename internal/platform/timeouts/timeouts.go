// Package timeouts defines shared timeout constants used by the servers.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 10 * time.Second

// AssistantCall caps a single model round trip.
const AssistantCall = 45 * time.Second

// Janitor is the sweep interval for expiring idle assistant sessions.
const Janitor = time.Minute

// OTPPurge is how often expired one-time codes are deleted.
const OTPPurge = 15 * time.Minute
