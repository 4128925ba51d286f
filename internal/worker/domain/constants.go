package domain

// Action is one of the asynchronous actions a worker knows how to run
type Action string

// Supported actions
const (
	ActionGenerateInvoice       Action = "generate_invoice"
	ActionGenerateHighlight     Action = "generate_highlight"
	ActionSendEmailNotification Action = "send_email_notification"
)

// SupportedActions lists every action a worker must have an executor for
var SupportedActions = []Action{
	ActionGenerateInvoice,
	ActionGenerateHighlight,
	ActionSendEmailNotification,
}

// ParseAction maps the raw action of a queue message onto the closed set
func ParseAction(raw string) (Action, bool) {
	switch action := Action(raw); action {
	case ActionGenerateInvoice, ActionGenerateHighlight, ActionSendEmailNotification:
		return action, true
	default:
		return "", false
	}
}
