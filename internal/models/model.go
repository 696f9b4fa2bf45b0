package models

import (
	"slices"
	"time"
)

type License string

const (
	LicenseCC0           License = "CC0"
	LicenseCC4           License = "CC4"
	LicenseAttribution   License = "Attribution"
	LicenseNonCommercial License = "Non-commercial"
)

var Licenses = []License{LicenseCC0, LicenseCC4, LicenseAttribution, LicenseNonCommercial}

func (l License) Valid() bool {
	return slices.Contains(Licenses, l)
}

// Model is an uploaded 3D asset with its catalog metadata. Author and Category
// are populated at read time.
type Model struct {
	ID           string      `json:"_id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Author       UserRef     `json:"author"`
	Category     CategoryRef `json:"category"`
	License      License     `json:"license"`
	FileURL      string      `json:"fileUrl"`
	FileName     string      `json:"fileName"`
	FileSize     int64       `json:"fileSize"`
	FileFormat   string      `json:"fileFormat"`
	Thumbnail    string      `json:"thumbnail"`
	Likes        []int64     `json:"likes"`
	LikesCount   int64       `json:"likesCount"`
	Views        int64       `json:"views"`
	Downloads    int64       `json:"downloads"`
	HasAnimation bool        `json:"hasAnimation"`
	Tags         []string    `json:"tags"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (m *Model) LikedBy(userID int64) bool {
	return slices.Contains(m.Likes, userID)
}

type ModelPage struct {
	Models      []Model `json:"models"`
	Total       int64   `json:"total"`
	TotalPages  int64   `json:"totalPages"`
	CurrentPage int     `json:"currentPage"`
}

// StoredFile is what the download path needs to stream a model's binary.
type StoredFile struct {
	ModelID  string
	FileURL  string
	FileName string
	FileSize int64
}
