package model

import (
	"encoding/json"
	"time"
)

// DateRange is the wire value for a date-valued record field. Start and End are
// either a bare date (YYYY-MM-DD) or a date-time with UTC offset. The zero value
// means "no date".
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

func (d DateRange) IsZero() bool { return d.Start == "" }

// WeekRef identifies the weekly container a record should be linked to.
// LinkedContainerID is empty when no container exists for the week.
type WeekRef struct {
	WeekNumber        int       `json:"weekNumber"`
	PublicationDate   time.Time `json:"-"`
	LinkedContainerID string    `json:"linkedContainerId,omitempty"`
	Title             string    `json:"containerTitle"`
}

func (w WeekRef) Linked() bool { return w.LinkedContainerID != "" }

func (w WeekRef) MarshalJSON() ([]byte, error) {
	type alias WeekRef
	return json.Marshal(struct {
		alias
		PublicationDate string  `json:"publicationDate"`
		LinkedContainer *string `json:"linkedContainerId"`
	}{
		alias:           alias(w),
		PublicationDate: w.PublicationDate.Format(time.DateOnly),
		LinkedContainer: nullable(w.LinkedContainerID),
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
