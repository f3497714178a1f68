package blog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*User
	groups   map[int64]*Group
	posts    map[int64]*Post
	comments []Comment
	follows  map[[2]string]bool
	likes    map[string]map[int64]bool
	nextID   int64
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]*User),
		groups:  make(map[int64]*Group),
		posts:   make(map[int64]*Post),
		follows: make(map[[2]string]bool),
		likes:   make(map[string]map[int64]bool),
		clock:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// tick hands out strictly increasing timestamps so ordering is stable.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrUsernameTaken
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	cp.Notifications = append([]Notification(nil), u.Notifications...)
	return &cp, nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	for pid, p := range m.posts {
		if p.AuthorID == id {
			m.deletePost(pid)
		}
	}
	comments := m.comments[:0]
	for _, c := range m.comments {
		if c.AuthorID != id {
			comments = append(comments, c)
		}
	}
	m.comments = comments
	delete(m.likes, id)
	for key := range m.follows {
		if key[0] == id || key[1] == id {
			delete(m.follows, key)
		}
	}
	return nil
}

// deletePost drops the post with its comments and likes. Callers hold m.mu.
func (m *memStore) deletePost(id int64) {
	delete(m.posts, id)
	comments := m.comments[:0]
	for _, c := range m.comments {
		if c.PostID != id {
			comments = append(comments, c)
		}
	}
	m.comments = comments
	for _, posts := range m.likes {
		delete(posts, id)
	}
}

func (m *memStore) CreateGroup(ctx context.Context, group *Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Slug == group.Slug {
			return ErrSlugTaken
		}
	}
	group.ID = m.id()
	cp := *group
	m.groups[group.ID] = &cp
	return nil
}

func (m *memStore) GetGroup(ctx context.Context, id int64) (*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) GetGroupBySlug(ctx context.Context, slug string) (*Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.Slug == slug {
			cp := *g
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListGroups(ctx context.Context) ([]Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var groups []Group
	for _, g := range m.groups {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Title < groups[j].Title })
	return groups, nil
}

func (m *memStore) DeleteGroup(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return ErrNotFound
	}
	delete(m.groups, id)
	for _, p := range m.posts {
		if p.GroupID != nil && *p.GroupID == id {
			p.GroupID = nil
		}
	}
	return nil
}

func (m *memStore) CreatePost(ctx context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post.ID = m.id()
	post.PubDate = m.tick()
	cp := *post
	cp.Group = nil
	m.posts[post.ID] = &cp
	return nil
}

func (m *memStore) UpdatePost(ctx context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[post.ID]
	if !ok {
		return ErrNotFound
	}
	p.Title, p.Subtitle, p.Text = post.Title, post.Subtitle, post.Text
	p.GroupID, p.Image = post.GroupID, post.Image
	return nil
}

// load fills the joined fields. Callers hold m.mu.
func (m *memStore) load(p *Post) Post {
	cp := *p
	if u, ok := m.users[p.AuthorID]; ok {
		cp.Author = u.Username
	}
	if p.GroupID != nil {
		if g, ok := m.groups[*p.GroupID]; ok {
			gc := *g
			cp.Group = &gc
		}
	}
	return cp
}

func (m *memStore) GetPost(ctx context.Context, id int64) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	post := m.load(p)
	return &post, nil
}

func (m *memStore) DeletePost(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	m.deletePost(id)
	return nil
}

func (m *memStore) matching(filter PostFilter) []Post {
	var posts []Post
	for _, p := range m.posts {
		switch {
		case filter.GroupID != nil && (p.GroupID == nil || *p.GroupID != *filter.GroupID):
			continue
		case filter.AuthorID != "" && p.AuthorID != filter.AuthorID:
			continue
		case filter.FollowerID != "" && !m.follows[[2]string{filter.FollowerID, p.AuthorID}]:
			continue
		}
		posts = append(posts, m.load(p))
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].PubDate.Equal(posts[j].PubDate) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].PubDate.After(posts[j].PubDate)
	})
	return posts
}

func (m *memStore) ListPosts(ctx context.Context, filter PostFilter, limit, offset int) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := m.matching(filter)
	if offset >= len(posts) {
		return nil, nil
	}
	posts = posts[offset:]
	if limit < len(posts) {
		posts = posts[:limit]
	}
	return posts, nil
}

func (m *memStore) CountPosts(ctx context.Context, filter PostFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(filter)), nil
}

func (m *memStore) CreateComment(ctx context.Context, comment *Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[comment.PostID]; !ok {
		return ErrNotFound
	}
	comment.ID = m.id()
	comment.Created = m.tick()
	m.comments = append(m.comments, *comment)
	return nil
}

func (m *memStore) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var comments []Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	return comments, nil
}

func (m *memStore) Follow(ctx context.Context, userID, authorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{userID, authorID}
	if m.follows[key] {
		return false, nil
	}
	m.follows[key] = true
	return true, nil
}

func (m *memStore) Unfollow(ctx context.Context, userID, authorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{userID, authorID}
	if !m.follows[key] {
		return false, nil
	}
	delete(m.follows, key)
	return true, nil
}

func (m *memStore) IsFollowing(ctx context.Context, userID, authorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.follows[[2]string{userID, authorID}], nil
}

func (m *memStore) GetFollowStats(ctx context.Context, userID string) (FollowStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats FollowStats
	for key := range m.follows {
		if key[0] == userID {
			stats.Follows++
		}
		if key[1] == userID {
			stats.FollowedBy++
		}
	}
	return stats, nil
}

func (m *memStore) Like(ctx context.Context, userID string, postID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.likes[userID] == nil {
		m.likes[userID] = make(map[int64]bool)
	}
	if m.likes[userID][postID] {
		return false, nil
	}
	m.likes[userID][postID] = true
	return true, nil
}

func (m *memStore) Unlike(ctx context.Context, userID string, postID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.likes[userID][postID] {
		return false, nil
	}
	delete(m.likes[userID], postID)
	return true, nil
}

func (m *memStore) HasLiked(ctx context.Context, userID string, postID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[userID][postID], nil
}

func (m *memStore) CountLikes(ctx context.Context, postID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, posts := range m.likes {
		if posts[postID] {
			n++
		}
	}
	return n, nil
}

func (m *memStore) AddNotification(ctx context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[n.UserID]
	if !ok {
		return ErrNotFound
	}
	u.Notifications = append([]Notification{*n}, u.Notifications...)
	return nil
}

func (m *memStore) postCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}
