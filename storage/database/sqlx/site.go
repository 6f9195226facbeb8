package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/site"
)

const (
	bannerColumns   = "id, image_url, link_url, position, year, sort_order, is_active, created_at"
	yearMetaColumns = "id, year, title, head_professor, advisors, committee, president, color, text_color, created_at"
	albumColumns    = "id, year, entries, created_at"

	settingsID = "site"
)

type bannerRow struct {
	ID        string      `db:"id"`
	ImageURL  string      `db:"image_url"`
	LinkURL   null.String `db:"link_url"`
	Position  string      `db:"position"`
	Year      null.String `db:"year"`
	Order     int         `db:"sort_order"`
	IsActive  bool        `db:"is_active"`
	CreatedAt time.Time   `db:"created_at"`
}

func (row bannerRow) banner() site.Banner {
	return site.Banner{
		ID:        row.ID,
		ImageURL:  row.ImageURL,
		LinkURL:   row.LinkURL,
		Position:  row.Position,
		Year:      row.Year,
		Order:     row.Order,
		IsActive:  row.IsActive,
		CreatedAt: utc(row.CreatedAt),
	}
}

type yearMetaRow struct {
	ID            string    `db:"id"`
	Year          string    `db:"year"`
	Title         string    `db:"title"`
	HeadProfessor string    `db:"head_professor"`
	Advisors      string    `db:"advisors"`
	Committee     string    `db:"committee"`
	President     string    `db:"president"`
	Color         string    `db:"color"`
	TextColor     string    `db:"text_color"`
	CreatedAt     time.Time `db:"created_at"`
}

func (row yearMetaRow) yearMeta() site.YearMeta {
	ym := site.YearMeta(row)
	ym.CreatedAt = utc(row.CreatedAt)
	return ym
}

type photoAlbumRow struct {
	ID        string         `db:"id"`
	Year      string         `db:"year"`
	Entries   types.JSONText `db:"entries"`
	CreatedAt time.Time      `db:"created_at"`
}

func (row photoAlbumRow) photoAlbum() (site.PhotoAlbum, error) {
	a := site.PhotoAlbum{ID: row.ID, Year: row.Year, CreatedAt: utc(row.CreatedAt)}
	if len(row.Entries) > 0 {
		if err := row.Entries.Unmarshal(&a.Entries); err != nil {
			return site.PhotoAlbum{}, errors.Wrapf(err, "decoding photo album %s", row.ID)
		}
	}
	if a.Entries == nil {
		a.Entries = []site.AlbumEntry{}
	}
	return a, nil
}

type siteRepository struct {
	repository
}

var _ site.Repository = (*siteRepository)(nil)

func NewSiteRepository(db core.DB) site.Repository {
	return &siteRepository{repository{db: db}}
}

func (repo *siteRepository) CreateBanner(ctx context.Context, b site.Banner) (site.Banner, error) {
	_, err := execContext(ctx, repo.db,
		"INSERT INTO banners ("+bannerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		b.ID, b.ImageURL, b.LinkURL, b.Position, b.Year, b.Order, b.IsActive, b.CreatedAt.UTC(),
	)
	if err != nil {
		return site.Banner{}, err
	}
	return repo.GetBanner(ctx, b.ID)
}

func (repo *siteRepository) GetBanner(ctx context.Context, id string) (site.Banner, error) {
	var row bannerRow
	if err := getContext(ctx, repo.db, &row, "SELECT "+bannerColumns+" FROM banners WHERE id = ?", id); err != nil {
		return site.Banner{}, notFound(err, site.ErrBannerNotFound)
	}
	return row.banner(), nil
}

func (repo *siteRepository) UpdateBanner(ctx context.Context, b site.Banner) (site.Banner, error) {
	n, err := execContext(ctx, repo.db,
		"UPDATE banners SET image_url = ?, link_url = ?, position = ?, year = ?, sort_order = ?, is_active = ? WHERE id = ?",
		b.ImageURL, b.LinkURL, b.Position, b.Year, b.Order, b.IsActive, b.ID,
	)
	if err != nil {
		return site.Banner{}, err
	}
	if n == 0 {
		return site.Banner{}, site.ErrBannerNotFound
	}
	return repo.GetBanner(ctx, b.ID)
}

func (repo *siteRepository) DeleteBanner(ctx context.Context, id string) error {
	n, err := execContext(ctx, repo.db, "DELETE FROM banners WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return site.ErrBannerNotFound
	}
	return nil
}

func bannerFilter(filter site.BannerFilter) *where {
	w := new(where)
	if filter.Year.Valid {
		w.add("year = ?", filter.Year.String)
	} else if filter.MainPage {
		w.add("year IS NULL")
	}
	if filter.Position != "" {
		w.add("position = ?", filter.Position)
	}
	if filter.ActiveOnly {
		w.add("is_active = ?", true)
	}
	return w
}

func (repo *siteRepository) QueryBanners(ctx context.Context, filter site.BannerFilter) ([]site.Banner, error) {
	w := bannerFilter(filter)
	var rows []bannerRow
	q := "SELECT " + bannerColumns + " FROM banners" + w.String() + " ORDER BY sort_order, created_at, id"
	if err := selectContext(ctx, repo.db, &rows, q, w.args...); err != nil {
		return nil, err
	}
	banners := make([]site.Banner, 0, len(rows))
	for _, row := range rows {
		banners = append(banners, row.banner())
	}
	return banners, nil
}

func (repo *siteRepository) CountBanners(ctx context.Context, filter site.BannerFilter) (int, error) {
	w := bannerFilter(filter)
	var count int
	err := getContext(ctx, repo.db, &count, "SELECT COUNT(*) FROM banners"+w.String(), w.args...)
	return count, err
}

func (repo *siteRepository) CreateYearMeta(ctx context.Context, ym site.YearMeta) (site.YearMeta, error) {
	_, err := execContext(ctx, repo.db,
		"INSERT INTO year_metas ("+yearMetaColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		ym.ID, ym.Year, ym.Title, ym.HeadProfessor, ym.Advisors, ym.Committee, ym.President, ym.Color, ym.TextColor,
		ym.CreatedAt.UTC(),
	)
	if err != nil {
		return site.YearMeta{}, err
	}
	return repo.GetYearMeta(ctx, ym.ID)
}

func (repo *siteRepository) getYearMeta(ctx context.Context, cond string, arg interface{}) (site.YearMeta, error) {
	var row yearMetaRow
	if err := getContext(ctx, repo.db, &row, "SELECT "+yearMetaColumns+" FROM year_metas WHERE "+cond, arg); err != nil {
		return site.YearMeta{}, notFound(err, site.ErrYearMetaNotFound)
	}
	return row.yearMeta(), nil
}

func (repo *siteRepository) GetYearMeta(ctx context.Context, id string) (site.YearMeta, error) {
	return repo.getYearMeta(ctx, "id = ?", id)
}

func (repo *siteRepository) GetYearMetaByYear(ctx context.Context, year string) (site.YearMeta, error) {
	return repo.getYearMeta(ctx, "year = ?", year)
}

func (repo *siteRepository) UpdateYearMeta(ctx context.Context, ym site.YearMeta) (site.YearMeta, error) {
	n, err := execContext(ctx, repo.db, `UPDATE year_metas SET year = ?, title = ?, head_professor = ?, advisors = ?,
	committee = ?, president = ?, color = ?, text_color = ?
WHERE id = ?`,
		ym.Year, ym.Title, ym.HeadProfessor, ym.Advisors, ym.Committee, ym.President, ym.Color, ym.TextColor, ym.ID,
	)
	if err != nil {
		return site.YearMeta{}, err
	}
	if n == 0 {
		return site.YearMeta{}, site.ErrYearMetaNotFound
	}
	return repo.GetYearMeta(ctx, ym.ID)
}

func (repo *siteRepository) DeleteYearMeta(ctx context.Context, id string) error {
	n, err := execContext(ctx, repo.db, "DELETE FROM year_metas WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return site.ErrYearMetaNotFound
	}
	return nil
}

func (repo *siteRepository) QueryYearMetas(ctx context.Context) ([]site.YearMeta, error) {
	var rows []yearMetaRow
	if err := selectContext(ctx, repo.db, &rows, "SELECT "+yearMetaColumns+" FROM year_metas ORDER BY year DESC"); err != nil {
		return nil, err
	}
	metas := make([]site.YearMeta, 0, len(rows))
	for _, row := range rows {
		metas = append(metas, row.yearMeta())
	}
	return metas, nil
}

func (repo *siteRepository) CreatePhotoAlbum(ctx context.Context, a site.PhotoAlbum) (site.PhotoAlbum, error) {
	entries, err := jsonList(a.Entries)
	if err != nil {
		return site.PhotoAlbum{}, err
	}
	_, err = execContext(ctx, repo.db,
		"INSERT INTO photo_albums ("+albumColumns+") VALUES (?, ?, ?, ?)",
		a.ID, a.Year, entries, a.CreatedAt.UTC(),
	)
	if err != nil {
		return site.PhotoAlbum{}, err
	}
	return repo.GetPhotoAlbum(ctx, a.ID)
}

func (repo *siteRepository) getPhotoAlbum(ctx context.Context, cond string, arg interface{}) (site.PhotoAlbum, error) {
	var row photoAlbumRow
	if err := getContext(ctx, repo.db, &row, "SELECT "+albumColumns+" FROM photo_albums WHERE "+cond, arg); err != nil {
		return site.PhotoAlbum{}, notFound(err, site.ErrPhotoAlbumNotFound)
	}
	return row.photoAlbum()
}

func (repo *siteRepository) GetPhotoAlbum(ctx context.Context, id string) (site.PhotoAlbum, error) {
	return repo.getPhotoAlbum(ctx, "id = ?", id)
}

func (repo *siteRepository) GetPhotoAlbumByYear(ctx context.Context, year string) (site.PhotoAlbum, error) {
	return repo.getPhotoAlbum(ctx, "year = ?", year)
}

func (repo *siteRepository) UpdatePhotoAlbum(ctx context.Context, a site.PhotoAlbum) (site.PhotoAlbum, error) {
	entries, err := jsonList(a.Entries)
	if err != nil {
		return site.PhotoAlbum{}, err
	}
	n, err := execContext(ctx, repo.db, "UPDATE photo_albums SET entries = ? WHERE id = ?", entries, a.ID)
	if err != nil {
		return site.PhotoAlbum{}, err
	}
	if n == 0 {
		return site.PhotoAlbum{}, site.ErrPhotoAlbumNotFound
	}
	return repo.GetPhotoAlbum(ctx, a.ID)
}

func (repo *siteRepository) DeletePhotoAlbum(ctx context.Context, id string) error {
	n, err := execContext(ctx, repo.db, "DELETE FROM photo_albums WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return site.ErrPhotoAlbumNotFound
	}
	return nil
}

func (repo *siteRepository) QueryPhotoAlbums(ctx context.Context) ([]site.PhotoAlbum, error) {
	var rows []photoAlbumRow
	if err := selectContext(ctx, repo.db, &rows, "SELECT "+albumColumns+" FROM photo_albums ORDER BY year DESC"); err != nil {
		return nil, err
	}
	albums := make([]site.PhotoAlbum, 0, len(rows))
	for _, row := range rows {
		a, err := row.photoAlbum()
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}
	return albums, nil
}

type settingsRow struct {
	PostUploadEnabled bool      `db:"post_upload_enabled"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (repo *siteRepository) GetSettings(ctx context.Context) (site.Settings, error) {
	var row settingsRow
	err := getContext(ctx, repo.db, &row, "SELECT post_upload_enabled, updated_at FROM settings WHERE id = ?", settingsID)
	if err != nil {
		return site.Settings{}, notFound(err, site.ErrSettingsNotFound)
	}
	return site.Settings{PostUploadEnabled: row.PostUploadEnabled, UpdatedAt: utc(row.UpdatedAt)}, nil
}

func (repo *siteRepository) SaveSettings(ctx context.Context, s site.Settings) (site.Settings, error) {
	_, err := execContext(ctx, repo.db, `INSERT INTO settings (id, post_upload_enabled, updated_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET post_upload_enabled = excluded.post_upload_enabled, updated_at = excluded.updated_at`,
		settingsID, s.PostUploadEnabled, s.UpdatedAt.UTC(),
	)
	if err != nil {
		return site.Settings{}, err
	}
	return repo.GetSettings(ctx)
}
