package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/post"
)

type postApi struct {
	svc      post.Service
	validate *validator.Validate
}

func registerPostAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := postApi{
		svc:      deps.PostSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/posts")

	// public endpoints
	pg.GET("", api.feed)
	pg.GET("/years", api.years)
	pg.GET("/search", api.search)
	pg.GET("/hall-of-fame", api.hallOfFame)
	pg.GET("/:id", api.retrieve)
	pg.POST("/:id/view", api.view)
	pg.GET("/:id/comments", api.comments)

	// authed endpoints
	pg.POST("", api.create, jwt)
	pg.PUT("/:id", api.update, jwt)
	pg.DELETE("/:id", api.destroy, jwt)
	pg.POST("/:id/like", api.toggleLike, jwt)
	pg.POST("/:id/comments", api.addComment, jwt)
	g.DELETE("/comments/:id", api.destroyComment, jwt)

	// admin pages
	g.GET("/admin/posts", api.adminPage, jwt, staffMiddleware())
}

// Handlers

func (api *postApi) feed(ctx echo.Context) error {
	var query FeedQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to FeedQuery")
	}

	page, err := api.svc.Feed(ctx.Request().Context(), post.QueryFilter{Year: query.Year}, query.After)
	if err != nil {
		return errors.Wrap(err, "querying feed")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *postApi) years(ctx echo.Context) error {
	years, err := api.svc.Years(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying years")
	}
	if years == nil {
		years = []int{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *postApi) search(ctx echo.Context) error {
	posts, err := api.svc.Search(ctx.Request().Context(), ctx.QueryParam("q"))
	if err != nil {
		return errors.Wrap(err, "searching posts")
	}
	return ctx.JSON(http.StatusOK, nonNilPosts(posts))
}

func (api *postApi) hallOfFame(ctx echo.Context) error {
	posts, err := api.svc.HallOfFame(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying hall of fame")
	}
	return ctx.JSON(http.StatusOK, nonNilPosts(posts))
}

func (api *postApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding post by ID")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) view(ctx echo.Context) error {
	views, err := api.svc.View(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "counting view")
	}
	return ctx.JSON(http.StatusOK, ViewsResponse{Views: views})
}

func (api *postApi) comments(ctx echo.Context) error {
	comments, err := api.svc.Comments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if comments == nil {
		comments = []post.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *postApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data post.NewPost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), claims.actor(), data)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *postApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data post.UpdatePost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePost")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), claims.actor(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating post")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.svc.Delete(ctx.Request().Context(), claims.actor(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *postApi) toggleLike(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	p, err := api.svc.ToggleLike(ctx.Request().Context(), claims.actor(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling like")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *postApi) addComment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data post.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.AddComment(ctx.Request().Context(), claims.actor(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *postApi) destroyComment(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.svc.DeleteComment(ctx.Request().Context(), claims.actor(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// adminPage serves the numbered admin listing through the cursor cache of the signed-in staff member.
func (api *postApi) adminPage(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	query := AdminPageQuery{Page: 1}
	if err := ctx.Bind(&query); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "page", Error: "page must be a number"})
	}

	page, err := api.svc.AdminPage(ctx.Request().Context(), claims.Subject, query.Page, query.Reset)
	if err != nil {
		return errors.Wrap(err, "fetching admin page")
	}
	return ctx.JSON(http.StatusOK, page)
}

func nonNilPosts(posts []post.Post) []post.Post {
	if posts == nil {
		return []post.Post{}
	}
	return posts
}
