// blog/db.go
package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    hash BYTEA,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    notifications JSONB NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS post_groups (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    slug VARCHAR(50) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS posts (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(200) NOT NULL DEFAULT '',
    subtitle VARCHAR(200) NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    pub_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    group_id BIGINT REFERENCES post_groups(id) ON DELETE SET NULL,
    image TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS comments (
    id BIGSERIAL PRIMARY KEY,
    post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    text TEXT NOT NULL,
    created TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS follows (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT unique_follow UNIQUE (user_id, author_id)
);
CREATE TABLE IF NOT EXISTS likes (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT unique_like UNIQUE (user_id, post_id)
);
CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    data BYTEA NOT NULL,
    expiry TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);
CREATE INDEX IF NOT EXISTS idx_posts_on_pub_date ON posts(pub_date DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_posts_on_author_id ON posts(author_id);
CREATE INDEX IF NOT EXISTS idx_posts_on_group_id ON posts(group_id);
CREATE INDEX IF NOT EXISTS idx_comments_on_post_id ON comments(post_id);
CREATE INDEX IF NOT EXISTS idx_follows_on_author_id ON follows(author_id);
CREATE INDEX IF NOT EXISTS idx_likes_on_post_id ON likes(post_id);
`

// Database is the PostgreSQL Store.
type Database struct {
	pool *pgxpool.Pool
}

var _ Store = (*Database)(nil)

func NewDatabase(ctx context.Context, connectionString string, maxConns int32) (*Database, error) {
	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{pool: pool}, nil
}

// Pool exposes the connection pool for the session store.
func (d *Database) Pool() *pgxpool.Pool {
	return d.pool
}

func (d *Database) Close() {
	d.pool.Close()
}

func (d *Database) CreateTables(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// parseID normalizes a user id. A string that is not a UUID cannot name a
// row, so it is reported as ErrNotFound.
func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrNotFound
	}
	return u.String(), nil
}

// parseIDs is parseID for several ids at once.
func parseIDs(ids ...string) ([]any, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		parsed, err := parseID(id)
		if err != nil {
			return nil, err
		}
		args[i] = parsed
	}
	return args, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- User Functions ---

func (d *Database) CreateUser(ctx context.Context, user *User) error {
	notificationsJSON, err := json.Marshal(user.Notifications)
	if err != nil {
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}
	query := `
        INSERT INTO users (id, username, email, hash, created_at, updated_at, notifications)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = d.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Hash,
		user.Created,
		user.Updated,
		string(notificationsJSON),
	)
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

const userColumns = `id::text, username, email, hash, created_at, updated_at, notifications`

func (d *Database) getUser(ctx context.Context, where string, arg any) (*User, error) {
	var user User
	var notificationsJSON []byte
	row := d.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Hash,
		&user.Created,
		&user.Updated,
		&notificationsJSON,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(notificationsJSON, &user.Notifications); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
	}
	return &user, nil
}

func (d *Database) GetUserByID(ctx context.Context, id string) (*User, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return d.getUser(ctx, "id = $1::uuid", id)
}

func (d *Database) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return d.getUser(ctx, "username = $1", username)
}

// DeleteUser removes the user together with their posts, comments, follows
// and likes.
func (d *Database) DeleteUser(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx, `DELETE FROM users WHERE id = $1::uuid`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddNotification prepends n to the recipient's notification list.
func (d *Database) AddNotification(ctx context.Context, n *Notification) error {
	b, err := json.Marshal([]*Notification{n})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	recipient, err := parseID(n.UserID)
	if err != nil {
		return err
	}
	query := `UPDATE users SET notifications = $2::jsonb || notifications, updated_at = NOW() WHERE id = $1::uuid`
	tag, err := d.pool.Exec(ctx, query, recipient, string(b))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Group Functions ---

func (d *Database) CreateGroup(ctx context.Context, group *Group) error {
	query := `INSERT INTO post_groups (title, slug, description) VALUES ($1, $2, $3) RETURNING id`
	err := d.pool.QueryRow(ctx, query, group.Title, group.Slug, group.Description).Scan(&group.ID)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	return err
}

func (d *Database) getGroup(ctx context.Context, where string, arg any) (*Group, error) {
	var g Group
	row := d.pool.QueryRow(ctx, "SELECT id, title, slug, description FROM post_groups WHERE "+where, arg)
	if err := row.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (d *Database) GetGroup(ctx context.Context, id int64) (*Group, error) {
	return d.getGroup(ctx, "id = $1", id)
}

func (d *Database) GetGroupBySlug(ctx context.Context, slug string) (*Group, error) {
	return d.getGroup(ctx, "slug = $1", slug)
}

func (d *Database) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, title, slug, description FROM post_groups ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Title, &g.Slug, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// DeleteGroup detaches the group's posts; it does not delete them.
func (d *Database) DeleteGroup(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM post_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Post Functions ---

const postSelect = `
    SELECT p.id, p.title, p.subtitle, p.text, p.pub_date, p.author_id::text, u.username,
           p.group_id, g.title, g.slug, g.description, p.image
    FROM posts p
    JOIN users u ON u.id = p.author_id
    LEFT JOIN post_groups g ON g.id = p.group_id`

func scanPost(row pgx.Row) (*Post, error) {
	var p Post
	var groupTitle, groupSlug, groupDescription *string
	err := row.Scan(&p.ID, &p.Title, &p.Subtitle, &p.Text, &p.PubDate, &p.AuthorID, &p.Author,
		&p.GroupID, &groupTitle, &groupSlug, &groupDescription, &p.Image)
	if err != nil {
		return nil, err
	}
	if p.GroupID != nil && groupSlug != nil {
		p.Group = &Group{ID: *p.GroupID, Title: *groupTitle, Slug: *groupSlug, Description: *groupDescription}
	}
	return &p, nil
}

// where renders the filter as a WHERE clause whose placeholders start after
// the given args.
func (f PostFilter) where(args []any) (string, []any) {
	var conds []string
	if f.GroupID != nil {
		args = append(args, *f.GroupID)
		conds = append(conds, fmt.Sprintf("p.group_id = $%d", len(args)))
	}
	if f.AuthorID != "" {
		if id, err := parseID(f.AuthorID); err != nil {
			conds = append(conds, "FALSE")
		} else {
			args = append(args, id)
			conds = append(conds, fmt.Sprintf("p.author_id = $%d::uuid", len(args)))
		}
	}
	if f.FollowerID != "" {
		if id, err := parseID(f.FollowerID); err != nil {
			conds = append(conds, "FALSE")
		} else {
			args = append(args, id)
			conds = append(conds, fmt.Sprintf("p.author_id IN (SELECT author_id FROM follows WHERE user_id = $%d::uuid)", len(args)))
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (d *Database) CreatePost(ctx context.Context, post *Post) error {
	query := `INSERT INTO posts (title, subtitle, text, author_id, group_id, image)
              VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, pub_date`
	return d.pool.QueryRow(ctx, query, post.Title, post.Subtitle, post.Text, post.AuthorID, post.GroupID, post.Image).
		Scan(&post.ID, &post.PubDate)
}

func (d *Database) UpdatePost(ctx context.Context, post *Post) error {
	query := `UPDATE posts SET title = $2, subtitle = $3, text = $4, group_id = $5, image = $6 WHERE id = $1`
	tag, err := d.pool.Exec(ctx, query, post.ID, post.Title, post.Subtitle, post.Text, post.GroupID, post.Image)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) GetPost(ctx context.Context, id int64) (*Post, error) {
	post, err := scanPost(d.pool.QueryRow(ctx, postSelect+" WHERE p.id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return post, nil
}

// DeletePost removes the post together with its comments and likes.
func (d *Database) DeletePost(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) ListPosts(ctx context.Context, filter PostFilter, limit, offset int) ([]Post, error) {
	where, args := filter.where(nil)
	args = append(args, limit, offset)
	query := fmt.Sprintf("%s%s ORDER BY p.pub_date DESC, p.id DESC LIMIT $%d OFFSET $%d",
		postSelect, where, len(args)-1, len(args))
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (d *Database) CountPosts(ctx context.Context, filter PostFilter) (int, error) {
	where, args := filter.where(nil)
	var count int
	err := d.pool.QueryRow(ctx, "SELECT COUNT(*) FROM posts p"+where, args...).Scan(&count)
	return count, err
}

// --- Comment Functions ---

func (d *Database) CreateComment(ctx context.Context, comment *Comment) error {
	query := `INSERT INTO comments (post_id, author_id, text) VALUES ($1, $2, $3) RETURNING id, created`
	return d.pool.QueryRow(ctx, query, comment.PostID, comment.AuthorID, comment.Text).
		Scan(&comment.ID, &comment.Created)
}

func (d *Database) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	query := `SELECT c.id, c.post_id, c.author_id::text, u.username, c.text, c.created
              FROM comments c JOIN users u ON u.id = c.author_id
              WHERE c.post_id = $1
              ORDER BY c.created ASC, c.id ASC`
	rows, err := d.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Author, &c.Text, &c.Created); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// --- Follow and Like Functions ---

// Follow inserts the pair unless it already exists; the unique constraint
// settles concurrent duplicates.
func (d *Database) Follow(ctx context.Context, userID, authorID string) (bool, error) {
	args, err := parseIDs(userID, authorID)
	if err != nil {
		return false, err
	}
	query := `INSERT INTO follows (user_id, author_id) VALUES ($1::uuid, $2::uuid) ON CONFLICT ON CONSTRAINT unique_follow DO NOTHING`
	tag, err := d.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (d *Database) Unfollow(ctx context.Context, userID, authorID string) (bool, error) {
	args, err := parseIDs(userID, authorID)
	if err != nil {
		return false, nil
	}
	tag, err := d.pool.Exec(ctx, `DELETE FROM follows WHERE user_id = $1::uuid AND author_id = $2::uuid`, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (d *Database) IsFollowing(ctx context.Context, userID, authorID string) (bool, error) {
	args, err := parseIDs(userID, authorID)
	if err != nil {
		return false, nil
	}
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM follows WHERE user_id = $1::uuid AND author_id = $2::uuid)`
	err = d.pool.QueryRow(ctx, query, args...).Scan(&exists)
	return exists, err
}

func (d *Database) GetFollowStats(ctx context.Context, userID string) (FollowStats, error) {
	var stats FollowStats
	id, err := parseID(userID)
	if err != nil {
		return stats, nil
	}
	query := `SELECT
                (SELECT COUNT(*) FROM follows WHERE user_id = $1::uuid),
                (SELECT COUNT(*) FROM follows WHERE author_id = $1::uuid)`
	err = d.pool.QueryRow(ctx, query, id).Scan(&stats.Follows, &stats.FollowedBy)
	return stats, err
}

func (d *Database) Like(ctx context.Context, userID string, postID int64) (bool, error) {
	id, err := parseID(userID)
	if err != nil {
		return false, err
	}
	query := `INSERT INTO likes (user_id, post_id) VALUES ($1::uuid, $2) ON CONFLICT ON CONSTRAINT unique_like DO NOTHING`
	tag, err := d.pool.Exec(ctx, query, id, postID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (d *Database) Unlike(ctx context.Context, userID string, postID int64) (bool, error) {
	id, err := parseID(userID)
	if err != nil {
		return false, nil
	}
	tag, err := d.pool.Exec(ctx, `DELETE FROM likes WHERE user_id = $1::uuid AND post_id = $2`, id, postID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (d *Database) HasLiked(ctx context.Context, userID string, postID int64) (bool, error) {
	id, err := parseID(userID)
	if err != nil {
		return false, nil
	}
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1::uuid AND post_id = $2)`
	err = d.pool.QueryRow(ctx, query, id, postID).Scan(&exists)
	return exists, err
}

func (d *Database) CountLikes(ctx context.Context, postID int64) (int, error) {
	var count int
	err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&count)
	return count, err
}
