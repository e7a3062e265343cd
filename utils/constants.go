package utils

import (
	"time"
)

// Dispatch constants
const (
	// DefaultClaimLease is how long a claimed occurrence stays invisible to
	// other dispatcher instances before it may be reclaimed.
	DefaultClaimLease = 5 * time.Minute

	// DefaultSendTimeout bounds a single provider call.
	DefaultSendTimeout = 10 * time.Second

	// DefaultDispatchDeadline bounds one whole occurrence; recipients not
	// attempted by then are recorded as skipped.
	DefaultDispatchDeadline = 3 * time.Minute

	// DefaultPollInterval is the dispatcher tick.
	DefaultPollInterval = 30 * time.Second
)

// Stats constants
const (
	// RecentSendsLimit is the number of rows in the recent-sends view.
	RecentSendsLimit = 20

	// AudienceEstimateTTL is how long a cached audience-size estimate is
	// served before being re-resolved.
	AudienceEstimateTTL = 5 * time.Minute
)
