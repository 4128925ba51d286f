package domain

// SyncAction is one of the actions answered immediately by the sync endpoint
type SyncAction string

const (
	SyncActionLogin             SyncAction = "login"
	SyncActionCheckSubscription SyncAction = "check_subscription"
)

// ParseSyncAction maps a raw action onto the closed set of sync actions
func ParseSyncAction(raw string) (SyncAction, bool) {
	switch action := SyncAction(raw); action {
	case SyncActionLogin, SyncActionCheckSubscription:
		return action, true
	default:
		return "", false
	}
}

const (
	// NullText is how a missing or null request field is rendered in messages
	NullText = "null"

	MsgUnknownSyncAction   = "Unknown synchronous action."
	MsgInvalidRequestBody  = "Invalid request body"
	MsgFailedToCreateJob   = "Failed to create job"
	MsgFailedToEnqueueJob  = "Failed to enqueue job"
	MsgJobNotFound         = "Job not found"
	MsgInternalServerError = "Internal server error"
)
