package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gallery/core/post"
	"github.com/trezcool/gallery/core/site"
	"github.com/trezcool/gallery/core/user"
)

type siteApi struct {
	svc      site.Service
	userSvc  user.Service
	postSvc  post.Service
	validate *validator.Validate
}

func registerSiteAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := siteApi{
		svc:      deps.SiteSvc,
		userSvc:  deps.UserSvc,
		postSvc:  deps.PostSvc,
		validate: deps.Validate,
	}

	// public endpoints
	g.GET("/banners", api.publicBanners)
	g.GET("/year-metas/:year", api.yearMeta)
	g.GET("/photo-albums/:year", api.photoAlbum)
	g.GET("/settings", api.settings)

	// admin pages
	ag := g.Group("/admin", jwt, staffMiddleware())
	ag.GET("/stats", api.stats)
	ag.PUT("/settings", api.updateSettings)

	ag.GET("/banners", api.banners)
	ag.POST("/banners", api.createBanner)
	ag.PUT("/banners/:id", api.updateBanner)
	ag.DELETE("/banners/:id", api.destroyBanner)

	ag.GET("/year-metas", api.yearMetas)
	ag.POST("/year-metas", api.createYearMeta)
	ag.PUT("/year-metas/:id", api.updateYearMeta)
	ag.DELETE("/year-metas/:id", api.destroyYearMeta)

	ag.GET("/photo-albums", api.photoAlbums)
	ag.POST("/photo-albums", api.createPhotoAlbum)
	ag.DELETE("/photo-albums/:id", api.destroyPhotoAlbum)
	ag.POST("/photo-albums/:id/entries", api.addAlbumEntry)
	ag.PUT("/photo-albums/:id/entries/:entryId", api.updateAlbumEntry)
	ag.DELETE("/photo-albums/:id/entries/:entryId", api.destroyAlbumEntry)
}

// Handlers

func (api *siteApi) publicBanners(ctx echo.Context) error {
	var query BannersQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to BannersQuery")
	}
	banners, err := api.svc.PublicBanners(ctx.Request().Context(), query.Year)
	if err != nil {
		return errors.Wrap(err, "querying banners")
	}
	return ctx.JSON(http.StatusOK, nonNilBanners(banners))
}

func (api *siteApi) yearMeta(ctx echo.Context) error {
	ym, err := api.svc.YearMeta(ctx.Request().Context(), ctx.Param("year"))
	if err != nil {
		return errors.Wrap(err, "finding year meta")
	}
	return ctx.JSON(http.StatusOK, ym)
}

func (api *siteApi) settings(ctx echo.Context) error {
	s, err := api.svc.Settings(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reading settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *siteApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), api.userSvc, api.postSvc)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *siteApi) updateSettings(ctx echo.Context) error {
	var data site.UpdateSettings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSettings")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.UpdateSettings(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *siteApi) banners(ctx echo.Context) error {
	banners, err := api.svc.Banners(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying banners")
	}
	return ctx.JSON(http.StatusOK, nonNilBanners(banners))
}

func (api *siteApi) createBanner(ctx echo.Context) error {
	var data site.NewBanner
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBanner")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.CreateBanner(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating banner")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *siteApi) updateBanner(ctx echo.Context) error {
	var data site.UpdateBanner
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBanner")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.UpdateBanner(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating banner")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *siteApi) destroyBanner(ctx echo.Context) error {
	if err := api.svc.DeleteBanner(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting banner")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *siteApi) yearMetas(ctx echo.Context) error {
	metas, err := api.svc.YearMetas(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying year metas")
	}
	if metas == nil {
		metas = []site.YearMeta{}
	}
	return ctx.JSON(http.StatusOK, metas)
}

func (api *siteApi) createYearMeta(ctx echo.Context) error {
	var data site.NewYearMeta
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewYearMeta")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ym, err := api.svc.CreateYearMeta(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating year meta")
	}
	return ctx.JSON(http.StatusCreated, ym)
}

func (api *siteApi) updateYearMeta(ctx echo.Context) error {
	var data site.UpdateYearMeta
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateYearMeta")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ym, err := api.svc.UpdateYearMeta(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating year meta")
	}
	return ctx.JSON(http.StatusOK, ym)
}

func (api *siteApi) destroyYearMeta(ctx echo.Context) error {
	if err := api.svc.DeleteYearMeta(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting year meta")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *siteApi) photoAlbum(ctx echo.Context) error {
	a, err := api.svc.PhotoAlbum(ctx.Request().Context(), ctx.Param("year"))
	if err != nil {
		return errors.Wrap(err, "finding photo album")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *siteApi) photoAlbums(ctx echo.Context) error {
	albums, err := api.svc.PhotoAlbums(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying photo albums")
	}
	if albums == nil {
		albums = []site.PhotoAlbum{}
	}
	return ctx.JSON(http.StatusOK, albums)
}

func (api *siteApi) createPhotoAlbum(ctx echo.Context) error {
	var data site.NewPhotoAlbum
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPhotoAlbum")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.CreatePhotoAlbum(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating photo album")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *siteApi) destroyPhotoAlbum(ctx echo.Context) error {
	if err := api.svc.DeletePhotoAlbum(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting photo album")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *siteApi) bindAlbumEntry(ctx echo.Context) (site.AlbumEntryInput, error) {
	var data site.AlbumEntryInput
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to AlbumEntryInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return data, err
	}
	return data, nil
}

func (api *siteApi) addAlbumEntry(ctx echo.Context) error {
	data, err := api.bindAlbumEntry(ctx)
	if err != nil {
		return err
	}

	a, err := api.svc.AddAlbumEntry(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding album entry")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *siteApi) updateAlbumEntry(ctx echo.Context) error {
	data, err := api.bindAlbumEntry(ctx)
	if err != nil {
		return err
	}

	a, err := api.svc.UpdateAlbumEntry(ctx.Request().Context(), ctx.Param("id"), ctx.Param("entryId"), data)
	if err != nil {
		return errors.Wrap(err, "updating album entry")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *siteApi) destroyAlbumEntry(ctx echo.Context) error {
	a, err := api.svc.DeleteAlbumEntry(ctx.Request().Context(), ctx.Param("id"), ctx.Param("entryId"))
	if err != nil {
		return errors.Wrap(err, "deleting album entry")
	}
	return ctx.JSON(http.StatusOK, a)
}

func nonNilBanners(banners []site.Banner) []site.Banner {
	if banners == nil {
		return []site.Banner{}
	}
	return banners
}
