package entity

// StatusChangeEvent is broadcast to observers whenever a record's status
// changes. It is transient: observers that are not connected at emission
// time never see it. Error is only set on the failure path to FLAGGED.
type StatusChangeEvent struct {
	RecordID string `json:"record_id"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
}
