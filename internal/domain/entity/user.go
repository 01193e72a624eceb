package entity

// User is the profile document at users/{id}; only the display fields the chat
// core needs are mapped.
type User struct {
	ID          string `json:"id" firestore:"-"`
	DisplayName string `json:"display_name" firestore:"displayName"`
	PhotoURL    string `json:"photo_url" firestore:"photoURL"`
	Email       string `json:"email,omitempty" firestore:"email,omitempty"`
}

// Participant is the identity a chat view acts as or talks to.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

func (u *User) Participant() Participant {
	return Participant{ID: u.ID, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}
