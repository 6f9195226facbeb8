package echoapi

type (
	// FeedQuery binds the "load more" parameters of the public feed.
	FeedQuery struct {
		Year  int    `query:"year"`
		After string `query:"after"`
	}

	// AdminPageQuery binds the numbered pagination parameters of the admin listing.
	AdminPageQuery struct {
		Page  int  `query:"page"`
		Reset bool `query:"reset"`
	}

	BannersQuery struct {
		Year string `query:"year"`
	}

	ViewsResponse struct {
		Views int `json:"views"`
	}

	UploadResponse struct {
		URL string `json:"url"`
	}
)
