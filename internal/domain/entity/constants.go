package entity

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
	NotificationStatusSkipped = "SKIPPED"
)

// Decision channels recorded in history comments and events
const (
	ChannelEmailLink = "email link"
	ChannelWebhook   = "webhook"
)

// Creation comments for the first history entry
const (
	CreatedViaAPI     = "created via api upload"
	CreatedViaWebForm = "created via web form"
)

// DefaultWebhookSource is used when a webhook payload omits source
const DefaultWebhookSource = "webhook"
