package constants

// SchemaName holds every table tablequeue creates.
const SchemaName = "tablequeue"

// Advisory lock keys. Queue table provisioning appends the queue name.
const (
	MigrationLock  = "tablequeue:migrate"
	QueueTableLock = "tablequeue:queue_table:"
)

// HeartbeatKeyPrefix starts every heartbeat key, followed by "<queue>-<run id>".
const HeartbeatKeyPrefix = "job_queue-"

// AllQueues selects every registered queue in operator commands.
const AllQueues = "all"
