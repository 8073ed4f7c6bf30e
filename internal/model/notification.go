package model

// Notification is posted to the side-channel webhook after a record is created.
type Notification struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	NotionURL   string `json:"notionUrl"`
}

// Email is an outbound transactional message.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}
