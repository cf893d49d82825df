// Package bot implements the Telegram side of the linking workflow: the wire
// types for incoming updates, a thin API client, and the dispatcher that turns
// one update into replies via the linking service and the receipt ingestor.
// Handlers stay stateless; a webhook call owns exactly one update.
package bot

// Update is one incoming Telegram update. Only the message variant is
// dispatched; everything else is counted and dropped.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is the subset of Telegram's message object the bot reads.
type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from"`
	Chat      *Chat       `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

// Chat identifies the conversation; its ID is the external chat identity the
// linking workflow keys on.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// User is the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// PhotoSize is one rendition of a photo message. Telegram sends several sizes
// per photo; the dispatcher downloads the largest.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// File is the getFile response payload used to build the download path.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// DisplayName composes the non-authoritative display name cached on a link.
// Returns nil when the sender carries no usable name.
func (u *User) DisplayName() *string {
	if u == nil {
		return nil
	}
	name := u.FirstName
	if name == "" {
		name = u.Username
	}
	if name == "" {
		return nil
	}
	return &name
}

// LargestPhoto returns the highest-resolution rendition, or nil for an empty
// slice. Telegram orders sizes ascending but that is not relied on.
func LargestPhoto(photos []PhotoSize) *PhotoSize {
	var best *PhotoSize
	for i := range photos {
		p := &photos[i]
		if best == nil || p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}
