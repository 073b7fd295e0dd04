package lifecycle

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action names a lifecycle operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionAnalyze Action = "analyze"
	ActionArchive Action = "archive"
	ActionReload  Action = "reload"
	ActionRepair  Action = "repair"
)

// NotificationStatus is the state shown to the user for an operation.
type NotificationStatus string

const (
	NotifyPending NotificationStatus = "pending"
	NotifySuccess NotificationStatus = "success"
	NotifyError   NotificationStatus = "error"
)

// Notification is a transient status message about one operation. An
// operation publishes a pending notification and then exactly one success
// or error notification with the same ID.
type Notification struct {
	ID       string             `json:"id"`
	Action   Action             `json:"action"`
	ScriptID string             `json:"script_id,omitempty"`
	Status   NotificationStatus `json:"status"`
	Message  string             `json:"message"`
	Time     time.Time          `json:"time"`
}

// Notifier receives notifications. Notify must not block.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

var (
	pendingMessages = map[Action]string{
		ActionCreate:  "Encrypting script...",
		ActionAnalyze: "Performing analysis on encrypted script...",
		ActionArchive: "Archiving script...",
		ActionReload:  "Loading scripts...",
		ActionRepair:  "Scanning ledger for unindexed scripts...",
	}
	successMessages = map[Action]string{
		ActionCreate:  "Script encrypted and stored securely!",
		ActionAnalyze: "Analysis completed successfully!",
		ActionArchive: "Script archived securely!",
		ActionReload:  "Scripts loaded",
		ActionRepair:  "Key index repaired",
	}
	failurePrefixes = map[Action]string{
		ActionCreate:  "Upload failed: ",
		ActionAnalyze: "Analysis failed: ",
		ActionArchive: "Archiving failed: ",
		ActionReload:  "Loading failed: ",
		ActionRepair:  "Repair failed: ",
	}
)

// failureMessage renders err for the user. A declined signature is shown
// verbatim whatever the action.
func failureMessage(action Action, err error) string {
	if errors.Is(err, ErrUserRejected) {
		return "Transaction rejected by user"
	}
	return failurePrefixes[action] + err.Error()
}

// op tracks the notifications of one operation.
type op struct {
	m        *Manager
	id       string
	action   Action
	scriptID string
}

func (m *Manager) begin(action Action, scriptID string) *op {
	o := &op{m: m, id: uuid.NewString(), action: action, scriptID: scriptID}
	o.publish(NotifyPending, pendingMessages[action])
	return o
}

func (o *op) publish(status NotificationStatus, msg string) {
	if o.m.notifier == nil {
		return
	}
	o.m.notifier.Notify(Notification{
		ID:       o.id,
		Action:   o.action,
		ScriptID: o.scriptID,
		Status:   status,
		Message:  msg,
		Time:     o.m.now(),
	})
}

// end publishes the terminal notification for err and returns err.
func (o *op) end(err error) error {
	if err != nil {
		o.publish(NotifyError, failureMessage(o.action, err))
	} else {
		o.publish(NotifySuccess, successMessages[o.action])
	}
	return err
}
