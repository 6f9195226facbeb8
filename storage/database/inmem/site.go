package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/gallery/core/site"
)

type siteRepository struct {
	db *siteTable
}

var _ site.Repository = (*siteRepository)(nil)

func NewSiteRepository(db *DB) site.Repository {
	return &siteRepository{db: db.site}
}

func (repo *siteRepository) CreateBanner(_ context.Context, b site.Banner) (site.Banner, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.banners[b.ID] = &b
	return b, nil
}

func (repo *siteRepository) GetBanner(_ context.Context, id string) (site.Banner, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if b, ok := repo.db.banners[id]; ok {
		return *b, nil
	}
	return site.Banner{}, site.ErrBannerNotFound
}

func (repo *siteRepository) UpdateBanner(_ context.Context, b site.Banner) (site.Banner, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.banners[b.ID]; !ok {
		return site.Banner{}, site.ErrBannerNotFound
	}
	repo.db.banners[b.ID] = &b
	return b, nil
}

func (repo *siteRepository) DeleteBanner(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.banners[id]; !ok {
		return site.ErrBannerNotFound
	}
	delete(repo.db.banners, id)
	return nil
}

func (repo *siteRepository) queryBanners(filter site.BannerFilter) []site.Banner {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	res := make([]site.Banner, 0, len(repo.db.banners))
	for _, b := range repo.db.banners {
		if filter.Year.Valid && (!b.Year.Valid || b.Year.String != filter.Year.String) {
			continue
		}
		if !filter.Year.Valid && filter.MainPage && b.Year.Valid {
			continue
		}
		if filter.Position != "" && b.Position != filter.Position {
			continue
		}
		if filter.ActiveOnly && !b.IsActive {
			continue
		}
		res = append(res, *b)
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return res
}

func (repo *siteRepository) QueryBanners(_ context.Context, filter site.BannerFilter) ([]site.Banner, error) {
	return repo.queryBanners(filter), nil
}

func (repo *siteRepository) CountBanners(_ context.Context, filter site.BannerFilter) (int, error) {
	return len(repo.queryBanners(filter)), nil
}

func (repo *siteRepository) CreateYearMeta(_ context.Context, ym site.YearMeta) (site.YearMeta, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, m := range repo.db.yearMetas {
		if m.Year == ym.Year {
			return site.YearMeta{}, site.ErrYearExists
		}
	}
	repo.db.yearMetas[ym.ID] = &ym
	return ym, nil
}

func (repo *siteRepository) GetYearMeta(_ context.Context, id string) (site.YearMeta, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if ym, ok := repo.db.yearMetas[id]; ok {
		return *ym, nil
	}
	return site.YearMeta{}, site.ErrYearMetaNotFound
}

func (repo *siteRepository) GetYearMetaByYear(_ context.Context, year string) (site.YearMeta, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, ym := range repo.db.yearMetas {
		if ym.Year == year {
			return *ym, nil
		}
	}
	return site.YearMeta{}, site.ErrYearMetaNotFound
}

func (repo *siteRepository) UpdateYearMeta(_ context.Context, ym site.YearMeta) (site.YearMeta, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.yearMetas[ym.ID]; !ok {
		return site.YearMeta{}, site.ErrYearMetaNotFound
	}
	repo.db.yearMetas[ym.ID] = &ym
	return ym, nil
}

func (repo *siteRepository) DeleteYearMeta(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.yearMetas[id]; !ok {
		return site.ErrYearMetaNotFound
	}
	delete(repo.db.yearMetas, id)
	return nil
}

func (repo *siteRepository) QueryYearMetas(_ context.Context) ([]site.YearMeta, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	res := make([]site.YearMeta, 0, len(repo.db.yearMetas))
	for _, ym := range repo.db.yearMetas {
		res = append(res, *ym)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Year > res[j].Year })
	return res, nil
}

// cloneAlbum copies the entries of a so that stored albums never share them with callers.
func cloneAlbum(a site.PhotoAlbum) site.PhotoAlbum {
	entries := make([]site.AlbumEntry, 0, len(a.Entries))
	for _, e := range a.Entries {
		entries = append(entries, site.AlbumEntry{ID: e.ID, Links: append([]string(nil), e.Links...)})
	}
	a.Entries = entries
	return a
}

func (repo *siteRepository) CreatePhotoAlbum(_ context.Context, a site.PhotoAlbum) (site.PhotoAlbum, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, other := range repo.db.albums {
		if other.Year == a.Year {
			return site.PhotoAlbum{}, site.ErrAlbumExists
		}
	}
	a = cloneAlbum(a)
	repo.db.albums[a.ID] = &a
	return cloneAlbum(a), nil
}

func (repo *siteRepository) GetPhotoAlbum(_ context.Context, id string) (site.PhotoAlbum, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if a, ok := repo.db.albums[id]; ok {
		return cloneAlbum(*a), nil
	}
	return site.PhotoAlbum{}, site.ErrPhotoAlbumNotFound
}

func (repo *siteRepository) GetPhotoAlbumByYear(_ context.Context, year string) (site.PhotoAlbum, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, a := range repo.db.albums {
		if a.Year == year {
			return cloneAlbum(*a), nil
		}
	}
	return site.PhotoAlbum{}, site.ErrPhotoAlbumNotFound
}

func (repo *siteRepository) UpdatePhotoAlbum(_ context.Context, a site.PhotoAlbum) (site.PhotoAlbum, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	stored, ok := repo.db.albums[a.ID]
	if !ok {
		return site.PhotoAlbum{}, site.ErrPhotoAlbumNotFound
	}
	stored.Entries = cloneAlbum(a).Entries
	return cloneAlbum(*stored), nil
}

func (repo *siteRepository) DeletePhotoAlbum(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.albums[id]; !ok {
		return site.ErrPhotoAlbumNotFound
	}
	delete(repo.db.albums, id)
	return nil
}

func (repo *siteRepository) QueryPhotoAlbums(_ context.Context) ([]site.PhotoAlbum, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	res := make([]site.PhotoAlbum, 0, len(repo.db.albums))
	for _, a := range repo.db.albums {
		res = append(res, cloneAlbum(*a))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Year > res[j].Year })
	return res, nil
}

func (repo *siteRepository) GetSettings(_ context.Context) (site.Settings, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if repo.db.settings == nil {
		return site.Settings{}, site.ErrSettingsNotFound
	}
	return *repo.db.settings, nil
}

func (repo *siteRepository) SaveSettings(_ context.Context, s site.Settings) (site.Settings, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.settings = &s
	return s, nil
}
