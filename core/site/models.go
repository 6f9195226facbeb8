package site

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gallery/core"
)

// Banner positions
const (
	PositionLeft  = "left"
	PositionRight = "right"
)

const (
	DefaultColor     = "#fde1e4"
	DefaultTextColor = "#7a2327"
)

type (
	Banner struct {
		ID       string      `json:"id"`
		ImageURL string      `json:"image_url"`
		LinkURL  null.String `json:"link_url"`
		Position string      `json:"position"`
		// Year is the gallery year the banner is shown on, null for the main page.
		Year      null.String `json:"year"`
		Order     int         `json:"order"`
		IsActive  bool        `json:"is_active"`
		CreatedAt time.Time   `json:"created_at"` // UTC
	}

	NewBanner struct {
		ImageURL string      `json:"image_url" validate:"required"`
		LinkURL  null.String `json:"link_url"`
		Position string      `json:"position" validate:"required,oneof=left right"`
		Year     null.String `json:"year"`
		Order    int         `json:"order" validate:"min=0"`
		IsActive *bool       `json:"is_active"`
	}

	UpdateBanner NewBanner

	BannerFilter struct {
		Year       null.String
		MainPage   bool // only the banners without a year
		Position   string
		ActiveOnly bool
	}

	// YearMeta holds the header shown on the page of a gallery year.
	YearMeta struct {
		ID            string    `json:"id"`
		Year          string    `json:"year"`
		Title         string    `json:"title"`
		HeadProfessor string    `json:"head_professor"`
		Advisors      string    `json:"advisors"`
		Committee     string    `json:"committee"`
		President     string    `json:"president"`
		Color         string    `json:"color"`
		TextColor     string    `json:"text_color"`
		CreatedAt     time.Time `json:"created_at"` // UTC
	}

	NewYearMeta struct {
		Year          string `json:"year" validate:"required,len=4,numeric"`
		Title         string `json:"title" validate:"required,max=255"`
		HeadProfessor string `json:"head_professor" validate:"max=255"`
		Advisors      string `json:"advisors"`
		Committee     string `json:"committee"`
		President     string `json:"president" validate:"max=255"`
		Color         string `json:"color" validate:"omitempty,hexcolor"`
		TextColor     string `json:"text_color" validate:"omitempty,hexcolor"`
	}

	UpdateYearMeta NewYearMeta

	// PhotoAlbum gathers the photo entries shown on the page of a gallery year.
	PhotoAlbum struct {
		ID        string       `json:"id"`
		Year      string       `json:"year"`
		Entries   []AlbumEntry `json:"entries"`
		CreatedAt time.Time    `json:"created_at"` // UTC
	}

	AlbumEntry struct {
		ID    string   `json:"id"`
		Links []string `json:"links"`
	}

	NewPhotoAlbum struct {
		Year string `json:"year" validate:"required,len=4,numeric"`
	}

	AlbumEntryInput struct {
		Links []string `json:"links" validate:"required,urls"`
	}

	Settings struct {
		PostUploadEnabled bool      `json:"post_upload_enabled"`
		UpdatedAt         time.Time `json:"updated_at"` // UTC
	}

	UpdateSettings struct {
		PostUploadEnabled *bool `json:"post_upload_enabled" validate:"required"`
	}

	Stats struct {
		Users         int `json:"users"`
		Posts         int `json:"posts"`
		Comments      int `json:"comments"`
		ActiveBanners int `json:"active_banners"`
	}
)

func (nb *NewBanner) Validate(validate *validator.Validate) error {
	nb.ImageURL = core.CleanString(nb.ImageURL)
	nb.Position = core.CleanString(nb.Position, true /* lower */)
	nb.LinkURL = cleanNullString(nb.LinkURL)
	nb.Year = cleanNullString(nb.Year)
	if err := validate.Struct(nb); err != nil {
		return err
	}
	if nb.Year.Valid && !isYear(nb.Year.String) {
		return core.NewValidationError(nil, core.FieldError{Field: "year", Error: "invalid year"})
	}
	return nil
}

func (ub *UpdateBanner) Validate(validate *validator.Validate) error {
	return (*NewBanner)(ub).Validate(validate)
}

func (ny *NewYearMeta) Validate(validate *validator.Validate) error {
	ny.Year = core.CleanString(ny.Year)
	ny.Title = core.CleanString(ny.Title)
	ny.HeadProfessor = core.CleanString(ny.HeadProfessor)
	ny.Advisors = core.CleanString(ny.Advisors)
	ny.Committee = core.CleanString(ny.Committee)
	ny.President = core.CleanString(ny.President)
	ny.Color = core.CleanString(ny.Color, true /* lower */)
	ny.TextColor = core.CleanString(ny.TextColor, true /* lower */)
	return validate.Struct(ny)
}

func (uy *UpdateYearMeta) Validate(validate *validator.Validate) error {
	return (*NewYearMeta)(uy).Validate(validate)
}

func (na *NewPhotoAlbum) Validate(validate *validator.Validate) error {
	na.Year = core.CleanString(na.Year)
	return validate.Struct(na)
}

func (in *AlbumEntryInput) Validate(validate *validator.Validate) error {
	if in.Links = core.CleanStrings(in.Links); len(in.Links) == 0 {
		in.Links = nil
	}
	return validate.Struct(in)
}

func (us UpdateSettings) Validate(validate *validator.Validate) error { return validate.Struct(us) }

func cleanNullString(s null.String) null.String {
	if !s.Valid {
		return s
	}
	if v := core.CleanString(s.String); v != "" {
		return null.StringFrom(v)
	}
	return null.String{}
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
