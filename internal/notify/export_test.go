package notify

// NewQueueNotifierWithClient exposes the enqueue seam to tests.
var NewQueueNotifierWithClient = newQueueNotifier

// TaskEnqueuer exposes the client interface to tests.
type TaskEnqueuer = taskEnqueuer
