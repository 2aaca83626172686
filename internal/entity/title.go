package entity

import "time"

// TitleGenresTable is the join table between titles and genres.
const TitleGenresTable = "title_genres"

type Title struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:256;not null;index" json:"name"`
	Year        int       `gorm:"not null;index;check:chk_titles_year,year >= 1" json:"year"`
	Description string    `gorm:"type:text" json:"description"`
	Rating      *float64  `json:"rating"`
	CategoryID  *uint     `gorm:"index" json:"-"`
	Category    *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"category"`
	Genres      []Genre   `gorm:"many2many:title_genres;" json:"genre"`
	CoverURL    *string   `gorm:"type:text" json:"cover_url,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"-"`
}
