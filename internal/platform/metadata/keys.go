package metadata

// Keys of the metadata table.
const (
	// StoreDriverKey is the raffle store driver used by the previous start.
	StoreDriverKey = "store_driver"

	// InitializedAtKey is the RFC 3339 time of the last successful start.
	InitializedAtKey = "initialized_at"
)
