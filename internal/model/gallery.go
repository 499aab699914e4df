package model

import "time"

// GalleryItem is a photo or short video reel shown on the gallery page.
type GalleryItem struct {
	ID        uint64    `json:"id"`
	Type      string    `json:"type"` // photo | reel
	Src       string    `json:"src"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Title     string    `json:"title,omitempty"`
	Alt       string    `json:"alt,omitempty"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactMessage is a message left through the public contact form.
type ContactMessage struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
