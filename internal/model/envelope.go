package model

// Envelope is the canonical inbound email after provider normalization.
type Envelope struct {
	From    string `json:"from"`    // bare address
	To      string `json:"to"`      // bare address, empty when the provider gave none
	Subject string `json:"subject"`
	Body    string `json:"body"` // plain text

	// Provider names the payload shape that produced the envelope.
	Provider string `json:"-"`
}
