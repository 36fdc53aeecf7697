package entity

// AnalysisRequestMessage is the inbound message on the analysis.request
// queue, published by the upload service once a media object is stored.
type AnalysisRequestMessage struct {
	RecordID      string `json:"record_id"`
	SourceLocator string `json:"source_locator"`
	Filename      string `json:"filename"`
	FileSize      int64  `json:"file_size,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
}
