package model

// PageRef points at a record created in the record store.
type PageRef struct {
	ID  string `json:"pageId"`
	URL string `json:"url"`
}
