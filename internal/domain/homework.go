package domain

import "time"

// HomeworkText is one homework assignment with the time it was set.
type HomeworkText struct {
	Text  string    `json:"text,omitempty"`
	SetAt time.Time `json:"setAt,omitempty"`
}

// HomeworkEntry holds the current and the previous assignment of one
// (class, subject) pair. Closing the pair's room rolls current over to
// previous.
type HomeworkEntry struct {
	ClassName string       `json:"className"`
	Subject   string       `json:"subject"`
	Current   HomeworkText `json:"current"`
	Previous  HomeworkText `json:"previous"`
}

// Rollover moves the current assignment to the previous slot.
func (h *HomeworkEntry) Rollover() {
	h.Previous = h.Current
	h.Current = HomeworkText{}
}

// Upload records a file handed to the blob store; Ref is the path the
// store returned, the bytes themselves are not kept here.
type Upload struct {
	ID         string    `json:"id"`
	UserID     UserID    `json:"userId"`
	ClassName  string    `json:"className"`
	Subject    string    `json:"subject"`
	FileName   string    `json:"fileName"`
	Ref        string    `json:"ref"`
	UploadedAt time.Time `json:"uploadedAt"`
}
