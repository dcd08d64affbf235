package sqlite

import "time"

// CallRecord is one completed radio exchange: what the pilot asked and what
// the controller answered.
type CallRecord struct {
	ID          int64     `json:"id"`
	Pilot       string    `json:"pilot"`
	Frequency   string    `json:"frequency"`
	RequestKind string    `json:"request_kind"`
	Transcript  string    `json:"transcript"`
	ReplyScript string    `json:"reply_script"`
	Outcome     string    `json:"outcome"`
	Timestamp   time.Time `json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`
}
