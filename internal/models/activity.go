package models

import "time"

// Activity is one engagement feed entry, stored at activity:<id>.
type Activity struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	ActorID      string    `json:"actorId"`
	ActorName    string    `json:"actorName,omitempty"`
	SubjectID    string    `json:"subjectId"`
	SubjectTitle string    `json:"subjectTitle,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
