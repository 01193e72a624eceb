package entity

type MediaKind string

const (
	MediaKindGIF     MediaKind = "gifs"
	MediaKindSticker MediaKind = "stickers"
)

func (k MediaKind) Valid() bool {
	return k == MediaKindGIF || k == MediaKindSticker
}

// MediaCategories are the quick filters offered next to free-text search.
var MediaCategories = []string{"love", "happy", "sad", "angry", "celebrate", "greet"}

func IsMediaCategory(category string) bool {
	for _, c := range MediaCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Media is a picked GIF or sticker reference.
type Media struct {
	ID     string    `json:"id,omitempty"`
	Type   MediaKind `json:"type" validate:"required,oneof=gifs stickers"`
	URL    string    `json:"url" validate:"required,url"`
	Width  int       `json:"width" validate:"min=0"`
	Height int       `json:"height" validate:"min=0"`
	Title  string    `json:"title,omitempty"`
}

// Attachment is a local binary the sender wants to share. Raw bytes never
// reach the message record, only the uploaded URL does.
type Attachment struct {
	Data        []byte
	ContentType string
	Filename    string
}
