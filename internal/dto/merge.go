package dto

// MergeResult reports how many rows each step of an account merge touched.
type MergeResult struct {
	OldUserID string         `json:"oldUserId"`
	NewUserID string         `json:"newUserId"`
	Discarded map[string]int `json:"discarded"`
	Repointed map[string]int `json:"repointed"`
	Skipped   bool           `json:"skipped"`
}

// DeleteResult reports rows removed by a cascading user deletion.
type DeleteResult struct {
	UserID  string         `json:"userId"`
	Deleted map[string]int `json:"deleted"`
}
