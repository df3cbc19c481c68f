package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category groups catalog images by distribution family.
type Category string

const (
	CategoryUbuntu Category = "ubuntu"
	CategoryFedora Category = "fedora"
	CategoryMint   Category = "mint"
	CategoryDebian Category = "debian"
	CategoryArch   Category = "arch"
	CategoryOther  Category = "other"
)

var titleCaser = cases.Title(language.English)

// DisplayName returns the human-readable family name.
func (c Category) DisplayName() string {
	switch c {
	case CategoryUbuntu:
		return "Ubuntu"
	case CategoryFedora:
		return "Fedora"
	case CategoryMint:
		return "Linux Mint"
	case CategoryDebian:
		return "Debian"
	case CategoryArch:
		return "Arch Linux"
	case CategoryOther:
		return "Other"
	default:
		return titleCaser.String(strings.ToLower(string(c)))
	}
}

// Image is one downloadable entry in the remote catalog.
type Image struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Category    Category `json:"category"`
	DownloadURL string   `json:"download_url"`
	SHA256      string   `json:"sha256"`
	SizeBytes   int64    `json:"size_bytes"`
	SizeHuman   string   `json:"size_human"`
	Description string   `json:"description"`
	Verified    bool     `json:"verified"`
	DateAdded   string   `json:"date_added,omitempty"`
	Popularity  int      `json:"popularity,omitempty"`
}

// SearchText returns the lowercase haystack used for catalog search.
func (i Image) SearchText() string {
	return strings.ToLower(fmt.Sprintf("%s %s %s %s", i.Name, i.Version, i.Category, i.Description))
}

// UserImage is a local image file the user registered outside the catalog.
type UserImage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LocalPath string `json:"local_path"`
	SizeBytes int64  `json:"size_bytes"`
	AddedAt   string `json:"added_at"`
}

// Mirror is an alternative download location for a catalog image.
type Mirror struct {
	ID       int64
	ImageID  string
	URL      string
	Region   string
	Priority int
	Status   string
}

// Document is the complete catalog as published upstream.
type Document struct {
	Version     int     `json:"version"`
	LastUpdated string  `json:"last_updated"`
	Images      []Image `json:"distros"`
}
