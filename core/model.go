package core

import (
	"time"
)

// Mew is a single message posted to the board
// immutable
type Mew struct {
	ID      string    `json:"_id" gorm:"primaryKey;type:char(20)"`
	Seq     int64     `json:"-" gorm:"autoIncrement;uniqueIndex;not null"`
	Name    string    `json:"name" gorm:"type:varchar(50);not null"`
	Content string    `json:"content" gorm:"type:varchar(140);not null"`
	Created time.Time `json:"created" gorm:"->;<-:create;type:timestamp with time zone;not null;index"`
}

// SortDirection is the order of mews by creation time
type SortDirection int

const (
	SortDescending SortDirection = iota
	SortAscending
)

func (d SortDirection) String() string {
	if d == SortAscending {
		return "asc"
	}
	return "desc"
}

// PageMeta describes the window returned by a paginated read
type PageMeta struct {
	Total   int64 `json:"total"`
	Skip    int64 `json:"skip"`
	Limit   int64 `json:"limit"`
	HasMore bool  `json:"has_more"`
}

// Page is a window of mews with its metadata
type Page struct {
	Mews []Mew    `json:"mews"`
	Meta PageMeta `json:"meta"`
}
