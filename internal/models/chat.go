package models

// ChannelType classifies a conversation.
type ChannelType string

const (
	ChannelTypeChannel ChannelType = "channel"
	ChannelTypeGroup   ChannelType = "group"
	ChannelTypeDirect  ChannelType = "direct"
)

// Channel is a conversation the user can post to.
type Channel struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Type ChannelType `json:"type"`
}

// PublicLinksRequest holds the inputs of a public-link send.
type PublicLinksRequest struct {
	FileIDs        []int64 `json:"file_ids"`
	ChannelID      string  `json:"channel_id"`
	ChannelName    string  `json:"channel_name"`
	Comment        string  `json:"comment"`
	Permission     string  `json:"permission"`      // "view" or "edit"
	ExpirationDate string  `json:"expiration_date"` // YYYY-MM-DD, optional
	Password       string  `json:"password"`
}
