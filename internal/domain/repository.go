package domain

// HistoryRepository defines the interface for history record persistence
type HistoryRepository interface {
	// Create inserts a new record
	Create(record *HistoryRecord) error

	// PatchLocalFile sets the local path and size of a record by ID.
	// Reports false if the record does not exist; it is never re-created.
	PatchLocalFile(id string, file LocalFile) (bool, error)

	// FindByID finds a record by ID
	// Returns nil if not found
	FindByID(id string) (*HistoryRecord, error)

	// FindAll returns records newest first; limit <= 0 means no limit
	FindAll(limit int) ([]*HistoryRecord, error)

	// Delete deletes a record by ID
	Delete(id string) error
}
