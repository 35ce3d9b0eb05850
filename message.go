package slacksink

import "github.com/goccy/go-json"

// Message is the JSON payload accepted by a Slack incoming webhook.
type Message struct {
	Text        string       `json:"text,omitempty"`
	Channel     string       `json:"channel,omitempty"`
	UserName    string       `json:"username,omitempty"`
	IconEmoji   string       `json:"icon_emoji,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a titled block of fields within a message.
type Attachment struct {
	Title    string   `json:"title,omitempty"`
	Fallback string   `json:"fallback"`
	Color    string   `json:"color,omitempty"`
	Fields   []Field  `json:"fields,omitempty"`
	MrkdwnIn []string `json:"mrkdwn_in,omitempty"`
}

// Field is a single title/value pair. Short is a layout hint; nil leaves it to Slack.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short *bool  `json:"short,omitempty"`
}

// Encode serializes the message, omitting empty fields.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func boolPtr(b bool) *bool {
	return &b
}
