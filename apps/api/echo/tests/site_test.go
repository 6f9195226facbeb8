package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gallery/core/post"
	"github.com/trezcool/gallery/core/site"
	"github.com/trezcool/gallery/core/user"
	"github.com/trezcool/gallery/tests"
)

func Test_siteApi_banners(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.usrRepo, "Alice", "alice@test.cd", "", user.RoleUser, true)
	sub := testutil.CreateUser(t, f.usrRepo, "Sub", "sub@test.cd", "", user.RoleSubAdmin, true)
	token := f.getToken(t, sub)

	mainBanner, err := f.siteSvc.CreateBanner(ctx, site.NewBanner{ImageURL: "https://cdn.test/main.png", Position: site.PositionRight})
	require.NoError(t, err)
	yearBanner, err := f.siteSvc.CreateBanner(ctx, site.NewBanner{ImageURL: "https://cdn.test/2024.png", Position: site.PositionRight, Year: null.StringFrom("2024")})
	require.NoError(t, err)
	_, err = f.siteSvc.CreateBanner(ctx, site.NewBanner{ImageURL: "https://cdn.test/left.png", Position: site.PositionLeft})
	require.NoError(t, err)

	f.run(t, []httpTest{
		{name: "main page", method: http.MethodGet, path: "/v1/banners", wantData: marchallList(t, mainBanner)},
		{name: "year page", method: http.MethodGet, path: "/v1/banners?year=2024", wantData: marchallList(t, yearBanner)},
		{name: "empty year", method: http.MethodGet, path: "/v1/banners?year=2019", wantData: marchallList(t)},
		{name: "admin auth required", method: http.MethodGet, path: "/v1/admin/banners", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "staff required", method: http.MethodGet, path: "/v1/admin/banners", token: f.getToken(t, usr),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "create invalid", method: http.MethodPost, path: "/v1/admin/banners", token: token, body: []byte("{}"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"image_url": requiredMsg, "position": requiredMsg}),
		},
		{
			name: "create bad year", method: http.MethodPost, path: "/v1/admin/banners", token: token,
			body:     marchallObj(t, site.NewBanner{ImageURL: "https://cdn.test/x.png", Position: site.PositionLeft, Year: null.StringFrom("20x4")}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"year": "invalid year"}),
		},
		{
			name: "update unknown", method: http.MethodPut, path: "/v1/admin/banners/nope", token: token,
			body:     marchallObj(t, site.NewBanner{ImageURL: "https://cdn.test/x.png", Position: site.PositionLeft}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: site.ErrBannerNotFound.Error()}),
		},
	})

	t.Run("crud", func(t *testing.T) {
		off := false
		body := marchallObj(t, site.NewBanner{ImageURL: " https://cdn.test/new.png ", Position: "RIGHT", Order: 2, IsActive: &off})
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/banners", token, body)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var b site.Banner
		decode(t, rec, &b)
		assert.Equal(t, "https://cdn.test/new.png", b.ImageURL)
		assert.Equal(t, site.PositionRight, b.Position)
		assert.False(t, b.IsActive)
		assert.False(t, b.Year.Valid)

		body = marchallObj(t, site.UpdateBanner{ImageURL: b.ImageURL, Position: site.PositionLeft, Order: 1})
		req, rec = newAuthRequest(http.MethodPut, "/v1/admin/banners/"+b.ID, token, body)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &b)
		assert.Equal(t, site.PositionLeft, b.Position)
		assert.Equal(t, 1, b.Order)

		req, rec = newAuthRequest(http.MethodGet, "/v1/admin/banners", token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var all []site.Banner
		decode(t, rec, &all)
		assert.Len(t, all, 4)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/admin/banners/"+b.ID, token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		_, err := f.siteSvc.GetBanner(ctx, b.ID)
		assert.Equal(t, site.ErrBannerNotFound, err)
	})
}

func Test_siteApi_yearMetas(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.getToken(t, testutil.CreateUser(t, f.usrRepo, "Admin", "admin@test.cd", "", user.RoleAdmin, true))

	ym, err := f.siteSvc.CreateYearMeta(ctx, site.NewYearMeta{Year: "2024", Title: "Gallery 2024", Color: "#000000", TextColor: "#ffffff"})
	require.NoError(t, err)

	f.run(t, []httpTest{
		{name: "known year", method: http.MethodGet, path: "/v1/year-metas/2024", wantData: marchallObj(t, ym)},
		{
			name: "defaults", method: http.MethodGet, path: "/v1/year-metas/2019",
			wantData: marchallObj(t, site.YearMeta{Year: "2019", Color: site.DefaultColor, TextColor: site.DefaultTextColor}),
		},
		{name: "list", method: http.MethodGet, path: "/v1/admin/year-metas", token: token, wantData: marchallList(t, ym)},
		{
			name: "create invalid", method: http.MethodPost, path: "/v1/admin/year-metas", token: token, body: []byte("{}"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"year": requiredMsg, "title": requiredMsg}),
		},
		{
			name: "year taken", method: http.MethodPost, path: "/v1/admin/year-metas", token: token,
			body:     marchallObj(t, site.NewYearMeta{Year: "2024", Title: "Again"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"year": site.ErrYearExists.Error()}),
		},
		{
			name: "delete unknown", method: http.MethodDelete, path: "/v1/admin/year-metas/nope", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: site.ErrYearMetaNotFound.Error()}),
		},
	})

	t.Run("create update delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/year-metas", token, marchallObj(t, site.NewYearMeta{Year: "2025", Title: "Gallery 2025"}))
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var created site.YearMeta
		decode(t, rec, &created)
		assert.Equal(t, site.DefaultColor, created.Color)
		assert.Equal(t, site.DefaultTextColor, created.TextColor)

		up := marchallObj(t, site.UpdateYearMeta{Year: "2025", Title: "Renamed", President: "Dr. Kim"})
		req, rec = newAuthRequest(http.MethodPut, "/v1/admin/year-metas/"+created.ID, token, up)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated site.YearMeta
		decode(t, rec, &updated)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, "Dr. Kim", updated.President)

		req, rec = newAuthRequest(http.MethodDelete, "/v1/admin/year-metas/"+created.ID, token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func Test_siteApi_settingsAndStats(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "Alice", "alice@test.cd", "", user.RoleUser, true)
	sub := testutil.CreateUser(t, f.usrRepo, "Sub", "sub@test.cd", "", user.RoleSubAdmin, true)
	p := testutil.CreatePost(t, f.postRepo, post.Author{Name: usr.Name, Email: usr.Email}, "p", time.Now())
	_, err := f.postRepo.CreateComment(context.Background(), post.Comment{ID: "c1", PostID: p.ID, Author: post.Author{Name: sub.Name, Email: sub.Email}, Content: "hi", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = f.siteSvc.CreateBanner(context.Background(), site.NewBanner{ImageURL: "https://cdn.test/main.png", Position: site.PositionRight})
	require.NoError(t, err)
	token := f.getToken(t, sub)

	settings := func(t *testing.T) site.Settings {
		req, rec := newRequest(http.MethodGet, "/v1/settings")
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var s site.Settings
		decode(t, rec, &s)
		return s
	}
	assert.True(t, settings(t).PostUploadEnabled)

	off := false
	f.run(t, []httpTest{
		{
			name: "stats", method: http.MethodGet, path: "/v1/admin/stats", token: token,
			wantData: marchallObj(t, site.Stats{Users: 2, Posts: 1, Comments: 1, ActiveBanners: 1}),
		},
		{name: "stats staff only", method: http.MethodGet, path: "/v1/admin/stats", token: f.getToken(t, usr), wantCode: http.StatusForbidden},
		{
			name: "settings required", method: http.MethodPut, path: "/v1/admin/settings", token: token, body: []byte("{}"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"post_upload_enabled": requiredMsg}),
		},
		{name: "disable uploads", method: http.MethodPut, path: "/v1/admin/settings", token: token, body: marchallObj(t, site.UpdateSettings{PostUploadEnabled: &off})},
	})
	assert.False(t, settings(t).PostUploadEnabled)
}

func Test_siteApi_photoAlbums(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.usrRepo, "Alice", "alice@test.cd", "", user.RoleUser, true)
	token := f.getToken(t, testutil.CreateUser(t, f.usrRepo, "Sub", "sub@test.cd", "", user.RoleSubAdmin, true))

	a2023, err := f.siteSvc.CreatePhotoAlbum(ctx, site.NewPhotoAlbum{Year: "2023"})
	require.NoError(t, err)
	a2023, err = f.siteSvc.AddAlbumEntry(ctx, a2023.ID, site.AlbumEntryInput{Links: []string{"https://photos.test/1"}})
	require.NoError(t, err)

	f.run(t, []httpTest{
		{name: "public album", method: http.MethodGet, path: "/v1/photo-albums/2023", wantData: marchallObj(t, a2023)},
		{
			name: "empty album", method: http.MethodGet, path: "/v1/photo-albums/2019",
			wantData: marchallObj(t, site.PhotoAlbum{Year: "2019", Entries: []site.AlbumEntry{}}),
		},
		{name: "admin auth required", method: http.MethodGet, path: "/v1/admin/photo-albums", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "staff required", method: http.MethodGet, path: "/v1/admin/photo-albums", token: f.getToken(t, usr),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "list", method: http.MethodGet, path: "/v1/admin/photo-albums", token: token, wantData: marchallList(t, a2023)},
		{
			name: "create invalid", method: http.MethodPost, path: "/v1/admin/photo-albums", token: token, body: []byte("{}"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"year": requiredMsg}),
		},
		{
			name: "year taken", method: http.MethodPost, path: "/v1/admin/photo-albums", token: token,
			body:     marchallObj(t, site.NewPhotoAlbum{Year: "2023"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"year": site.ErrAlbumExists.Error()}),
		},
		{
			name: "entry without links", method: http.MethodPost, path: "/v1/admin/photo-albums/" + a2023.ID + "/entries", token: token,
			body:     marchallObj(t, site.AlbumEntryInput{Links: []string{" "}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"links": requiredMsg}),
		},
		{
			name: "entry with bad links", method: http.MethodPost, path: "/v1/admin/photo-albums/" + a2023.ID + "/entries", token: token,
			body:     marchallObj(t, site.AlbumEntryInput{Links: []string{"photo.png"}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"links": "only http(s) links are allowed"}),
		},
		{
			name: "entry of unknown album", method: http.MethodPost, path: "/v1/admin/photo-albums/nope/entries", token: token,
			body:     marchallObj(t, site.AlbumEntryInput{Links: []string{"https://photos.test/2"}}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: site.ErrPhotoAlbumNotFound.Error()}),
		},
		{
			name: "unknown entry", method: http.MethodDelete, path: "/v1/admin/photo-albums/" + a2023.ID + "/entries/nope", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: site.ErrAlbumEntryNotFound.Error()}),
		},
	})

	t.Run("album lifecycle", func(t *testing.T) {
		send := func(method, path string, wantCode int, body ...[]byte) site.PhotoAlbum {
			req, rec := newAuthRequest(method, path, token, body...)
			f.app.ServeHTTP(rec, req)
			require.Equal(t, wantCode, rec.Code, rec.Body.String())
			var a site.PhotoAlbum
			if wantCode != http.StatusNoContent {
				decode(t, rec, &a)
			}
			return a
		}

		a := send(http.MethodPost, "/v1/admin/photo-albums", http.StatusCreated, marchallObj(t, site.NewPhotoAlbum{Year: " 2024 "}))
		assert.Equal(t, "2024", a.Year)
		assert.Empty(t, a.Entries)
		entriesPath := "/v1/admin/photo-albums/" + a.ID + "/entries"

		body := marchallObj(t, site.AlbumEntryInput{Links: []string{"https://photos.test/a", " https://photos.test/b "}})
		got := send(http.MethodPost, entriesPath, http.StatusCreated, body)
		require.Len(t, got.Entries, 1)
		assert.Equal(t, []string{"https://photos.test/a", "https://photos.test/b"}, got.Entries[0].Links)
		entryID := got.Entries[0].ID

		body = marchallObj(t, site.AlbumEntryInput{Links: []string{"https://photos.test/c"}})
		got = send(http.MethodPut, entriesPath+"/"+entryID, http.StatusOK, body)
		assert.Equal(t, []site.AlbumEntry{{ID: entryID, Links: []string{"https://photos.test/c"}}}, got.Entries)

		got = send(http.MethodDelete, entriesPath+"/"+entryID, http.StatusOK)
		assert.Empty(t, got.Entries)

		send(http.MethodDelete, "/v1/admin/photo-albums/"+a.ID, http.StatusNoContent)
		got, err := f.siteSvc.PhotoAlbum(ctx, "2024")
		require.NoError(t, err)
		assert.Empty(t, got.ID)
	})
}
