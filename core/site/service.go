package site

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/gallery/core"
)

var (
	// errors
	ErrBannerNotFound   = errors.New("banner not found")
	ErrYearMetaNotFound = errors.New("year meta not found")
	ErrSettingsNotFound = errors.New("settings not found")
	ErrYearExists       = errors.New("this year already has its meta")

	ErrPhotoAlbumNotFound = errors.New("photo album not found")
	ErrAlbumEntryNotFound = errors.New("album entry not found")
	ErrAlbumExists        = errors.New("this year already has its photo album")
)

type (
	Repository interface {
		CreateBanner(ctx context.Context, b Banner) (Banner, error)
		GetBanner(ctx context.Context, id string) (Banner, error)
		UpdateBanner(ctx context.Context, b Banner) (Banner, error)
		DeleteBanner(ctx context.Context, id string) error
		// QueryBanners returns the banners matching filter by ascending order, oldest first among equals.
		QueryBanners(ctx context.Context, filter BannerFilter) ([]Banner, error)
		CountBanners(ctx context.Context, filter BannerFilter) (int, error)

		CreateYearMeta(ctx context.Context, ym YearMeta) (YearMeta, error)
		GetYearMeta(ctx context.Context, id string) (YearMeta, error)
		GetYearMetaByYear(ctx context.Context, year string) (YearMeta, error)
		UpdateYearMeta(ctx context.Context, ym YearMeta) (YearMeta, error)
		DeleteYearMeta(ctx context.Context, id string) error
		// QueryYearMetas returns every year meta, most recent year first.
		QueryYearMetas(ctx context.Context) ([]YearMeta, error)

		CreatePhotoAlbum(ctx context.Context, a PhotoAlbum) (PhotoAlbum, error)
		GetPhotoAlbum(ctx context.Context, id string) (PhotoAlbum, error)
		GetPhotoAlbumByYear(ctx context.Context, year string) (PhotoAlbum, error)
		// UpdatePhotoAlbum saves the entries of a.
		UpdatePhotoAlbum(ctx context.Context, a PhotoAlbum) (PhotoAlbum, error)
		DeletePhotoAlbum(ctx context.Context, id string) error
		// QueryPhotoAlbums returns every photo album, most recent year first.
		QueryPhotoAlbums(ctx context.Context) ([]PhotoAlbum, error)

		GetSettings(ctx context.Context) (Settings, error)
		SaveSettings(ctx context.Context, s Settings) (Settings, error)
	}

	Counter interface {
		Count(ctx context.Context) (int, error)
	}

	PostCounter interface {
		Counter
		CountComments(ctx context.Context) (int, error)
	}

	Service interface {
		Banners(ctx context.Context) ([]Banner, error)
		PublicBanners(ctx context.Context, year string) ([]Banner, error)
		GetBanner(ctx context.Context, id string) (Banner, error)
		CreateBanner(ctx context.Context, nb NewBanner) (Banner, error)
		UpdateBanner(ctx context.Context, id string, ub UpdateBanner) (Banner, error)
		DeleteBanner(ctx context.Context, id string) error

		YearMetas(ctx context.Context) ([]YearMeta, error)
		YearMeta(ctx context.Context, year string) (YearMeta, error)
		CreateYearMeta(ctx context.Context, ny NewYearMeta) (YearMeta, error)
		UpdateYearMeta(ctx context.Context, id string, uy UpdateYearMeta) (YearMeta, error)
		DeleteYearMeta(ctx context.Context, id string) error

		PhotoAlbums(ctx context.Context) ([]PhotoAlbum, error)
		PhotoAlbum(ctx context.Context, year string) (PhotoAlbum, error)
		CreatePhotoAlbum(ctx context.Context, na NewPhotoAlbum) (PhotoAlbum, error)
		DeletePhotoAlbum(ctx context.Context, id string) error
		AddAlbumEntry(ctx context.Context, albumID string, in AlbumEntryInput) (PhotoAlbum, error)
		UpdateAlbumEntry(ctx context.Context, albumID, entryID string, in AlbumEntryInput) (PhotoAlbum, error)
		DeleteAlbumEntry(ctx context.Context, albumID, entryID string) (PhotoAlbum, error)

		Settings(ctx context.Context) (Settings, error)
		UpdateSettings(ctx context.Context, us UpdateSettings) (Settings, error)
		PostUploadEnabled(ctx context.Context) (bool, error)

		Stats(ctx context.Context, users Counter, posts PostCounter) (Stats, error)
	}

	service struct {
		repo   Repository
		blobs  core.BlobStore
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, blobs core.BlobStore, logger core.Logger) Service {
	return &service{repo: repo, blobs: blobs, logger: logger}
}

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func (svc *service) Banners(ctx context.Context) ([]Banner, error) {
	return svc.repo.QueryBanners(ctx, BannerFilter{})
}

// PublicBanners returns the active right-hand banners of a gallery year ("" for the main page).
func (svc *service) PublicBanners(ctx context.Context, year string) ([]Banner, error) {
	filter := BannerFilter{Position: PositionRight, ActiveOnly: true}
	if year = core.CleanString(year); year != "" {
		filter.Year.SetValid(year)
	} else {
		filter.MainPage = true
	}
	return svc.repo.QueryBanners(ctx, filter)
}

func (svc *service) GetBanner(ctx context.Context, id string) (Banner, error) {
	return svc.repo.GetBanner(ctx, id)
}

func (svc *service) CreateBanner(ctx context.Context, nb NewBanner) (Banner, error) {
	b := Banner{
		ID:        uuid.NewString(),
		IsActive:  true,
		CreatedAt: now(),
	}
	b.apply(nb)
	return svc.repo.CreateBanner(ctx, b)
}

func (b *Banner) apply(nb NewBanner) {
	b.ImageURL = nb.ImageURL
	b.LinkURL = nb.LinkURL
	b.Position = nb.Position
	b.Year = nb.Year
	b.Order = nb.Order
	if nb.IsActive != nil {
		b.IsActive = *nb.IsActive
	}
}

func (svc *service) UpdateBanner(ctx context.Context, id string, ub UpdateBanner) (Banner, error) {
	orig, err := svc.repo.GetBanner(ctx, id)
	if err != nil {
		return Banner{}, err
	}
	b := orig
	b.apply(NewBanner(ub))
	if b, err = svc.repo.UpdateBanner(ctx, b); err != nil {
		return Banner{}, err
	}
	if orig.ImageURL != b.ImageURL {
		svc.deleteBlob(ctx, orig.ImageURL)
	}
	return b, nil
}

func (svc *service) DeleteBanner(ctx context.Context, id string) error {
	b, err := svc.repo.GetBanner(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteBanner(ctx, id); err != nil {
		return err
	}
	svc.deleteBlob(ctx, b.ImageURL)
	return nil
}

func (svc *service) deleteBlob(ctx context.Context, url string) {
	if svc.blobs == nil {
		return
	}
	if key, ok := svc.blobs.KeyFromURL(url); ok {
		if err := svc.blobs.Delete(ctx, key); err != nil {
			svc.logger.Error("deleting blob", errors.Wrap(err, key))
		}
	}
}

func (svc *service) YearMetas(ctx context.Context) ([]YearMeta, error) {
	return svc.repo.QueryYearMetas(ctx)
}

// YearMeta returns the meta of year, or a blank one carrying the default colors when there is none.
func (svc *service) YearMeta(ctx context.Context, year string) (YearMeta, error) {
	ym, err := svc.repo.GetYearMetaByYear(ctx, core.CleanString(year))
	if errors.Cause(err) == ErrYearMetaNotFound {
		return YearMeta{Year: year, Color: DefaultColor, TextColor: DefaultTextColor}, nil
	}
	return ym, err
}

func (svc *service) checkYearUniqueness(ctx context.Context, year string, exclID string) error {
	ym, err := svc.repo.GetYearMetaByYear(ctx, year)
	switch {
	case errors.Cause(err) == ErrYearMetaNotFound:
		return nil
	case err != nil:
		return err
	case ym.ID == exclID:
		return nil
	}
	return core.NewValidationError(ErrYearExists, core.FieldError{Field: "year", Error: ErrYearExists.Error()})
}

func (svc *service) CreateYearMeta(ctx context.Context, ny NewYearMeta) (YearMeta, error) {
	if err := svc.checkYearUniqueness(ctx, ny.Year, ""); err != nil {
		return YearMeta{}, err
	}
	ym := YearMeta{ID: uuid.NewString(), CreatedAt: now()}
	ym.apply(ny)
	return svc.repo.CreateYearMeta(ctx, ym)
}

func (ym *YearMeta) apply(ny NewYearMeta) {
	ym.Year = ny.Year
	ym.Title = ny.Title
	ym.HeadProfessor = ny.HeadProfessor
	ym.Advisors = ny.Advisors
	ym.Committee = ny.Committee
	ym.President = ny.President
	ym.Color = ny.Color
	if ym.Color == "" {
		ym.Color = DefaultColor
	}
	ym.TextColor = ny.TextColor
	if ym.TextColor == "" {
		ym.TextColor = DefaultTextColor
	}
}

func (svc *service) UpdateYearMeta(ctx context.Context, id string, uy UpdateYearMeta) (YearMeta, error) {
	ym, err := svc.repo.GetYearMeta(ctx, id)
	if err != nil {
		return YearMeta{}, err
	}
	if err := svc.checkYearUniqueness(ctx, uy.Year, id); err != nil {
		return YearMeta{}, err
	}
	ym.apply(NewYearMeta(uy))
	return svc.repo.UpdateYearMeta(ctx, ym)
}

func (svc *service) DeleteYearMeta(ctx context.Context, id string) error {
	return svc.repo.DeleteYearMeta(ctx, id)
}

func (svc *service) PhotoAlbums(ctx context.Context) ([]PhotoAlbum, error) {
	return svc.repo.QueryPhotoAlbums(ctx)
}

// PhotoAlbum returns the album of year, or an empty one when there is none.
func (svc *service) PhotoAlbum(ctx context.Context, year string) (PhotoAlbum, error) {
	year = core.CleanString(year)
	a, err := svc.repo.GetPhotoAlbumByYear(ctx, year)
	if errors.Cause(err) == ErrPhotoAlbumNotFound {
		return PhotoAlbum{Year: year, Entries: []AlbumEntry{}}, nil
	}
	return a, err
}

func (svc *service) CreatePhotoAlbum(ctx context.Context, na NewPhotoAlbum) (PhotoAlbum, error) {
	_, err := svc.repo.GetPhotoAlbumByYear(ctx, na.Year)
	switch {
	case err == nil:
		return PhotoAlbum{}, core.NewValidationError(ErrAlbumExists, core.FieldError{Field: "year", Error: ErrAlbumExists.Error()})
	case errors.Cause(err) != ErrPhotoAlbumNotFound:
		return PhotoAlbum{}, err
	}
	a := PhotoAlbum{
		ID:        uuid.NewString(),
		Year:      na.Year,
		Entries:   []AlbumEntry{},
		CreatedAt: now(),
	}
	return svc.repo.CreatePhotoAlbum(ctx, a)
}

// DeletePhotoAlbum deletes the album along with the uploaded files its entries link to.
func (svc *service) DeletePhotoAlbum(ctx context.Context, id string) error {
	a, err := svc.repo.GetPhotoAlbum(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeletePhotoAlbum(ctx, id); err != nil {
		return err
	}
	for _, e := range a.Entries {
		svc.deleteBlobs(ctx, e.Links, nil)
	}
	return nil
}

func (svc *service) AddAlbumEntry(ctx context.Context, albumID string, in AlbumEntryInput) (PhotoAlbum, error) {
	a, err := svc.repo.GetPhotoAlbum(ctx, albumID)
	if err != nil {
		return PhotoAlbum{}, err
	}
	a.Entries = append(a.Entries, AlbumEntry{ID: uuid.NewString(), Links: in.Links})
	return svc.repo.UpdatePhotoAlbum(ctx, a)
}

func (svc *service) UpdateAlbumEntry(ctx context.Context, albumID, entryID string, in AlbumEntryInput) (PhotoAlbum, error) {
	a, err := svc.repo.GetPhotoAlbum(ctx, albumID)
	if err != nil {
		return PhotoAlbum{}, err
	}
	i := a.entryIndex(entryID)
	if i < 0 {
		return PhotoAlbum{}, ErrAlbumEntryNotFound
	}
	old := a.Entries[i].Links
	entries := make([]AlbumEntry, len(a.Entries))
	copy(entries, a.Entries)
	entries[i].Links = in.Links
	a.Entries = entries
	if a, err = svc.repo.UpdatePhotoAlbum(ctx, a); err != nil {
		return PhotoAlbum{}, err
	}
	svc.deleteBlobs(ctx, old, in.Links)
	return a, nil
}

func (svc *service) DeleteAlbumEntry(ctx context.Context, albumID, entryID string) (PhotoAlbum, error) {
	a, err := svc.repo.GetPhotoAlbum(ctx, albumID)
	if err != nil {
		return PhotoAlbum{}, err
	}
	i := a.entryIndex(entryID)
	if i < 0 {
		return PhotoAlbum{}, ErrAlbumEntryNotFound
	}
	removed := a.Entries[i]
	entries := make([]AlbumEntry, 0, len(a.Entries)-1)
	entries = append(entries, a.Entries[:i]...)
	a.Entries = append(entries, a.Entries[i+1:]...)
	if a, err = svc.repo.UpdatePhotoAlbum(ctx, a); err != nil {
		return PhotoAlbum{}, err
	}
	svc.deleteBlobs(ctx, removed.Links, nil)
	return a, nil
}

func (a PhotoAlbum) entryIndex(id string) int {
	for i, e := range a.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// deleteBlobs deletes the uploaded files of links that are not kept.
func (svc *service) deleteBlobs(ctx context.Context, links, kept []string) {
	keep := make(map[string]struct{}, len(kept))
	for _, l := range kept {
		keep[l] = struct{}{}
	}
	for _, l := range links {
		if _, ok := keep[l]; !ok {
			svc.deleteBlob(ctx, l)
		}
	}
}

// Settings returns the site settings, saving the defaults on first read.
func (svc *service) Settings(ctx context.Context) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx)
	if errors.Cause(err) == ErrSettingsNotFound {
		return svc.repo.SaveSettings(ctx, Settings{PostUploadEnabled: true, UpdatedAt: now()})
	}
	return s, err
}

func (svc *service) UpdateSettings(ctx context.Context, us UpdateSettings) (Settings, error) {
	return svc.repo.SaveSettings(ctx, Settings{PostUploadEnabled: *us.PostUploadEnabled, UpdatedAt: now()})
}

func (svc *service) PostUploadEnabled(ctx context.Context) (bool, error) {
	s, err := svc.Settings(ctx)
	if err != nil {
		return false, err
	}
	return s.PostUploadEnabled, nil
}

func (svc *service) Stats(ctx context.Context, users Counter, posts PostCounter) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	if stats.Users, err = users.Count(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting users")
	}
	if stats.Posts, err = posts.Count(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting posts")
	}
	if stats.Comments, err = posts.CountComments(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting comments")
	}
	if stats.ActiveBanners, err = svc.repo.CountBanners(ctx, BannerFilter{ActiveOnly: true}); err != nil {
		return Stats{}, errors.Wrap(err, "counting banners")
	}
	return stats, nil
}
