// blog/models.go
package blog

import (
	"strconv"
	"time"
)

// Group is a themed collection of posts.
type Group struct {
	ID          int64  `json:"id" db:"id" validate:"-"`
	Title       string `json:"title" db:"title" validate:"required,max=200"`
	Slug        string `json:"slug" db:"slug" validate:"required,max=50,slug"`
	Description string `json:"description" db:"description"`
}

// Post belongs to its author and, optionally, to one group.
type Post struct {
	ID       int64     `json:"id" db:"id"`
	Title    string    `json:"title" db:"title"`
	Subtitle string    `json:"subtitle" db:"subtitle"`
	Text     string    `json:"text" db:"text"`
	PubDate  time.Time `json:"pub_date" db:"pub_date"`
	AuthorID string    `json:"author_id" db:"author_id"`
	Author   string    `json:"author" db:"author"` // username, filled by joins
	GroupID  *int64    `json:"group_id" db:"group_id"`
	Group    *Group    `json:"group,omitempty"`
	Image    string    `json:"image" db:"image"` // path relative to the media dir
}

// URL is the post's detail page.
func (p *Post) URL() string {
	return PostURL(p.Author, p.ID)
}

// PostURL builds /<username>/<post_id>/.
func PostURL(username string, id int64) string {
	return "/" + username + "/" + strconv.FormatInt(id, 10) + "/"
}

type Comment struct {
	ID       int64     `json:"id" db:"id"`
	PostID   int64     `json:"post_id" db:"post_id"`
	AuthorID string    `json:"author_id" db:"author_id"`
	Author   string    `json:"author" db:"author"`
	Text     string    `json:"text" db:"text"`
	Created  time.Time `json:"created" db:"created"`
}

// Follow means UserID sees AuthorID's posts in their feed.
type Follow struct {
	ID       int64     `json:"id" db:"id"`
	UserID   string    `json:"user_id" db:"user_id"`
	AuthorID string    `json:"author_id" db:"author_id"`
	Created  time.Time `json:"created" db:"created"`
}

type Like struct {
	ID      int64     `json:"id" db:"id"`
	UserID  string    `json:"user_id" db:"user_id"`
	PostID  int64     `json:"post_id" db:"post_id"`
	Created time.Time `json:"created" db:"created"`
}

// PostFilter narrows a post listing. The zero value lists every post.
type PostFilter struct {
	GroupID    *int64
	AuthorID   string
	FollowerID string // posts by authors this user follows
}

// FollowStats are the counters shown next to an author.
type FollowStats struct {
	Follows    int // authors this user follows
	FollowedBy int // users following this user
}
