package blog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// testUserDeleteCascades checks that deleting a user takes along their
// posts, their comments and likes on other posts, and follows in both
// directions. It runs against every Store implementation.
func testUserDeleteCascades(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	newUser := func() *User {
		u := NewUser("user-"+uuid.NewString()[:8], "")
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		t.Cleanup(func() { store.DeleteUser(context.Background(), u.ID) })
		return u
	}
	gone, reader := newUser(), newUser()

	own := &Post{Text: "by the deleted user", AuthorID: gone.ID}
	other := &Post{Text: "by the reader", AuthorID: reader.ID}
	for _, p := range []*Post{own, other} {
		if err := store.CreatePost(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range []*Comment{
		{PostID: other.ID, AuthorID: gone.ID, Text: "from the deleted user"},
		{PostID: other.ID, AuthorID: reader.ID, Text: "from the reader"},
	} {
		if err := store.CreateComment(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	store.Like(ctx, gone.ID, other.ID)
	store.Like(ctx, reader.ID, other.ID)
	store.Follow(ctx, gone.ID, reader.ID)
	store.Follow(ctx, reader.ID, gone.ID)

	if err := store.DeleteUser(ctx, gone.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if _, err := store.GetPost(ctx, own.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("own post err = %v, want ErrNotFound", err)
	}
	comments, err := store.ListComments(ctx, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 1 || comments[0].AuthorID != reader.ID {
		t.Errorf("comments = %+v, want only the reader's", comments)
	}
	if n, _ := store.CountLikes(ctx, other.ID); n != 1 {
		t.Errorf("likes = %d, want 1", n)
	}
	stats, err := store.GetFollowStats(ctx, reader.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats != (FollowStats{}) {
		t.Errorf("reader follow stats = %+v, want none", stats)
	}
	if n, _ := store.CountPosts(ctx, PostFilter{FollowerID: reader.ID}); n != 0 {
		t.Errorf("reader feed = %d posts, want 0", n)
	}
}

func TestMemStoreUserDeleteCascades(t *testing.T) {
	testUserDeleteCascades(t, newMemStore())
}
