package wire

// Topics экшены на общей шине событий. Каждая реплика подписывается на все
// четыре топика; payload всегда JSON с полями из этого пакета.
const (
	// TopicStateChange carries StateChangeEvent records published by every
	// local set/delete.
	TopicStateChange = "state.change"

	// TopicSyncRequest carries SyncRequest records published on a local
	// cache miss.
	TopicSyncRequest = "state.sync.request"

	// TopicSyncResponse carries SyncResponse records answering a sync
	// request. All replicas receive it; only the addressed replica applies it.
	TopicSyncResponse = "state.sync.response"

	// TopicConflictResolved carries ConflictResolved records for
	// monitoring collaborators.
	TopicConflictResolved = "state.conflict.resolved"
)
