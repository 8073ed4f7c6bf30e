package model

// EventFields is what the extractor returns for the event pipeline.
// Name and Date are required.
type EventFields struct {
	Name        string `json:"name"`
	Date        string `json:"date"`              // YYYY-MM-DD
	Time        string `json:"time,omitempty"`    // HH:MM
	EndDate     string `json:"endDate,omitempty"` // YYYY-MM-DD
	EndTime     string `json:"endTime,omitempty"` // HH:MM
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Organizer   string `json:"organizer,omitempty"`
	URL         string `json:"url,omitempty"`
}

type NewsletterFields struct {
	Title    string `json:"title"`
	Summary  string `json:"summary,omitempty"`
	Category string `json:"category,omitempty"`
	Link     string `json:"link,omitempty"`
}

type InboxFields struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Priority    string   `json:"priority,omitempty"` // high|medium|low
	ActionItems []string `json:"actionItems,omitempty"`
}
