package models

import "time"

// Moment is a journal post with optional media. Paths are keys inside the media store.
type Moment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"-"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	ImagePath  *string   `gorm:"size:255" json:"image_path"`
	ThumbPath  *string   `gorm:"size:255" json:"thumb_path"`
	VideoPath  *string   `gorm:"size:255" json:"video_path"`
	IsFavorite bool      `gorm:"default:false;index" json:"is_favorite"`
	Timestamp  time.Time `gorm:"column:posted_at;index;not null" json:"timestamp"`
}

// MediaKeys returns every non-empty media key attached to the moment.
func (m *Moment) MediaKeys() []string {
	var keys []string
	for _, p := range []*string{m.ImagePath, m.ThumbPath, m.VideoPath} {
		if p != nil && *p != "" {
			keys = append(keys, *p)
		}
	}
	return keys
}
