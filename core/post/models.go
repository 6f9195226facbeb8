package post

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gallery/core"
)

// Team member roles
const (
	MemberLeader  = "leader"
	MemberMember  = "member"
	MemberAdvisor = "advisor"
)

var (
	MemberRoles = []string{MemberLeader, MemberMember, MemberAdvisor}

	youtubeIDRegex = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)
)

type (
	Author struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	TeamMember struct {
		Name          string `json:"name" validate:"required,max=50"`
		Role          string `json:"role" validate:"required,oneof=leader member advisor"`
		GithubLink    string `json:"github_link,omitempty" validate:"omitempty,url"`
		PortfolioLink string `json:"portfolio_link,omitempty" validate:"omitempty,url"`
	}

	Post struct {
		ID                string       `json:"id"`
		Title             string       `json:"title"`
		Content           string       `json:"content"`
		ThumbnailURL      string       `json:"thumbnail_url"`
		DetailImages      []string     `json:"detail_images"`
		YoutubeVideoID    string       `json:"youtube_video_id,omitempty"`
		TeamName          string       `json:"team_name"`
		TeamMembers       []TeamMember `json:"team_members"`
		Author            Author       `json:"author"`
		Likes             []string     `json:"likes"` // emails
		Views             int          `json:"views"`
		PPTFileURL        string       `json:"ppt_file_url,omitempty"`
		ReferenceFileURLs []string     `json:"reference_file_urls"`
		WebsiteLinks      []string     `json:"website_links"`
		GithubLinks       []string     `json:"github_links"`
		TechStack         []string     `json:"tech_stack"`
		CommentCount      int          `json:"comment_count"`
		CreatedAt         time.Time    `json:"created_at"` // UTC
		UpdatedAt         time.Time    `json:"updated_at"` // UTC
	}

	// Cursor is the position of a post in the newest-first listing (keyset: created_at DESC, id DESC).
	Cursor struct {
		CreatedAt time.Time `json:"c"`
		ID        string    `json:"i"`
	}

	Comment struct {
		ID        string    `json:"id"`
		PostID    string    `json:"post_id"`
		Author    Author    `json:"author"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// NewPost contains information needed to publish a post.
	NewPost struct {
		Title             string       `json:"title" validate:"required,max=100"`
		Content           string       `json:"content" validate:"required"`
		ThumbnailURL      string       `json:"thumbnail_url" validate:"required"`
		DetailImages      []string     `json:"detail_images"`
		YoutubeLink       string       `json:"youtube_link"`
		TeamName          string       `json:"team_name" validate:"max=50"`
		TeamMembers       []TeamMember `json:"team_members" validate:"dive"`
		PPTFileURL        string       `json:"ppt_file_url"`
		ReferenceFileURLs []string     `json:"reference_file_urls"`
		WebsiteLinks      []string     `json:"website_links" validate:"urls"`
		GithubLinks       []string     `json:"github_links" validate:"urls"`
		TechStack         []string     `json:"tech_stack"`
	}

	// UpdatePost replaces the editable fields of a post. Likes, views and comments are left untouched.
	UpdatePost NewPost

	NewComment struct {
		Content string `json:"content" validate:"required,max=1000"`
	}

	QueryFilter struct {
		Year        int    `query:"year"`
		AuthorEmail string `query:"author"`
		LikedBy     string `query:"liked_by"`
	}
)

// Year returns the gallery year the post belongs to.
func (p Post) Year() int { return p.CreatedAt.UTC().Year() }

func (p Post) Cursor() Cursor { return Cursor{CreatedAt: p.CreatedAt, ID: p.ID} }

func (p Post) IsLikedBy(email string) bool {
	for _, e := range p.Likes {
		if e == email {
			return true
		}
	}
	return false
}

// Blobs lists every file URL the post references.
func (p Post) Blobs() []string {
	urls := make([]string, 0, 2+len(p.DetailImages)+len(p.ReferenceFileURLs))
	if p.ThumbnailURL != "" {
		urls = append(urls, p.ThumbnailURL)
	}
	urls = append(urls, p.DetailImages...)
	if p.PPTFileURL != "" {
		urls = append(urls, p.PPTFileURL)
	}
	return append(urls, p.ReferenceFileURLs...)
}

// Matches does a case-insensitive substring match of q on the searchable fields of the post.
func (p Post) Matches(q string) bool {
	q = strings.ToLower(q)
	fields := []string{p.Title, p.Content, p.TeamName}
	for _, m := range p.TeamMembers {
		fields = append(fields, m.Name)
	}
	fields = append(fields, p.TechStack...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// YoutubeVideoID extracts the 11 characters video ID of a YouTube link, "" when there is none.
func YoutubeVideoID(link string) string {
	m := youtubeIDRegex.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil || len(m[2]) != 11 {
		return ""
	}
	return m[2]
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.clean()
	return validate.Struct(np)
}

func (np *NewPost) clean() {
	np.Title = core.CleanString(np.Title)
	np.Content = strings.TrimSpace(np.Content)
	np.ThumbnailURL = core.CleanString(np.ThumbnailURL)
	np.TeamName = core.CleanString(np.TeamName)
	np.PPTFileURL = core.CleanString(np.PPTFileURL)
	np.DetailImages = nonNil(core.CleanStrings(np.DetailImages))
	np.ReferenceFileURLs = nonNil(core.CleanStrings(np.ReferenceFileURLs))
	np.WebsiteLinks = nonNil(core.CleanStrings(np.WebsiteLinks))
	np.GithubLinks = nonNil(core.CleanStrings(np.GithubLinks))
	np.TechStack = nonNil(core.CleanStrings(np.TechStack))

	members := make([]TeamMember, 0, len(np.TeamMembers))
	for _, m := range np.TeamMembers {
		m.Name = core.CleanString(m.Name)
		if m.Name == "" {
			continue
		}
		m.Role = core.CleanString(m.Role, true /* lower */)
		m.GithubLink = core.CleanString(m.GithubLink)
		m.PortfolioLink = core.CleanString(m.PortfolioLink)
		members = append(members, m)
	}
	np.TeamMembers = members
}

func (up *UpdatePost) Validate(validate *validator.Validate) error {
	return (*NewPost)(up).Validate(validate)
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = strings.TrimSpace(nc.Content)
	return validate.Struct(nc)
}

func (qf *QueryFilter) Clean() {
	qf.AuthorEmail = core.CleanString(qf.AuthorEmail, true /* lower */)
	qf.LikedBy = core.CleanString(qf.LikedBy, true /* lower */)
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// Actor is the signed-in user acting on posts and comments.
type Actor struct {
	Name    string
	Email   string
	IsStaff bool
}

func (a Actor) Author() Author { return Author{Name: a.Name, Email: a.Email} }

func (a Actor) canEdit(author Author) bool { return a.IsStaff || a.Email == author.Email }
