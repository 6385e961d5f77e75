package document

import "time"

// Document is the audit record for a rendered contract PDF stored with
// the object storage provider.
type Document struct {
	ID           string
	OrgID        string
	ContractID   string
	StorageKey   string
	SHA256       string
	SizeBytes    int64
	RenderMillis int64
	CreatedAt    time.Time
}
