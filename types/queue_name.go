package types

import "regexp"

// DefaultQueueName is the queue used when none is configured.
const DefaultQueueName = "job_queue"

var queueNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,47}$`)

// ValidQueueName reports whether name is a slug usable as a table name and heartbeat key segment.
func ValidQueueName(name string) bool {
	return queueNamePattern.MatchString(name)
}
