package entity

import "time"

type Category struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Slug      string    `gorm:"size:50;uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}

type Genre struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Slug      string    `gorm:"size:50;uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}
