package blog

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrSlugTaken     = errors.New("group slug already taken")
)

// Store is the persistence the handlers need. Lookups return ErrNotFound
// when the row does not exist.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	DeleteUser(ctx context.Context, id string) error

	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, id int64) (*Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	DeleteGroup(ctx context.Context, id int64) error

	CreatePost(ctx context.Context, post *Post) error
	UpdatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id int64) (*Post, error)
	DeletePost(ctx context.Context, id int64) error
	// ListPosts returns posts newest-first.
	ListPosts(ctx context.Context, filter PostFilter, limit, offset int) ([]Post, error)
	CountPosts(ctx context.Context, filter PostFilter) (int, error)

	CreateComment(ctx context.Context, comment *Comment) error
	// ListComments returns a post's comments oldest-first.
	ListComments(ctx context.Context, postID int64) ([]Comment, error)

	// Follow reports whether a new row was created.
	Follow(ctx context.Context, userID, authorID string) (bool, error)
	// Unfollow reports whether a row was deleted.
	Unfollow(ctx context.Context, userID, authorID string) (bool, error)
	IsFollowing(ctx context.Context, userID, authorID string) (bool, error)
	GetFollowStats(ctx context.Context, userID string) (FollowStats, error)

	Like(ctx context.Context, userID string, postID int64) (bool, error)
	Unlike(ctx context.Context, userID string, postID int64) (bool, error)
	HasLiked(ctx context.Context, userID string, postID int64) (bool, error)
	CountLikes(ctx context.Context, postID int64) (int, error)

	AddNotification(ctx context.Context, n *Notification) error
}
