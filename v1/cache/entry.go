package cache

// Entry is a single cached record.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt Timestamp `json:"created_at"`
}
