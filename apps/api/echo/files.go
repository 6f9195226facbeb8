package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gallery/core"
)

const defaultUploadFolder = "uploads"

type fileApi struct {
	blobs core.BlobStore
}

func registerFileAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := fileApi{blobs: deps.Blobs}

	fg := g.Group("/files")
	fg.GET("/*", api.serve)
	fg.POST("", api.upload, jwt)
}

// Handlers

func (api *fileApi) upload(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}
	folder := ctx.FormValue("folder")
	if folder == "" {
		folder = defaultUploadFolder
	}

	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	key, err := api.blobs.Put(ctx.Request().Context(), folder, fh.Filename, fh.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		return errors.Wrap(err, "storing upload")
	}
	return ctx.JSON(http.StatusCreated, UploadResponse{URL: api.blobs.URL(key)})
}

func (api *fileApi) serve(ctx echo.Context) error {
	blob, err := api.blobs.Get(ctx.Request().Context(), ctx.Param("*"))
	if err != nil {
		return errors.Wrap(err, "reading blob")
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	ctx.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	return ctx.Blob(http.StatusOK, contentType, blob.Data)
}
