package blog

import (
	"errors"
	"net/http"
)

// followIndex lists posts by the authors the viewer follows.
func (h *Handlers) followIndex(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	if deny(w, r, LoginRequired(r, rc.Viewer)) {
		return
	}
	posts, page, err := h.postsPage(r, rc, PostFilter{FollowerID: rc.Viewer.ID})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, rc, http.StatusOK, "follow.html", &ViewData{
		Title:      "Following",
		Posts:      posts,
		Pagination: page,
	})
}

// followTarget resolves the author named in the URL for follow and unfollow.
func (h *Handlers) followTarget(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string) *User {
	if deny(w, r, LoginRequired(r, rc.Viewer)) {
		return nil
	}
	if !allowMethods(r, http.MethodGet, http.MethodPost) {
		h.methodNotAllowed(w, []string{http.MethodGet, http.MethodPost})
		return nil
	}
	author, err := rc.Store.GetUserByUsername(rc.Ctx, username)
	if errors.Is(err, ErrNotFound) {
		h.notFound(w, r, rc)
		return nil
	}
	if err != nil {
		h.serverError(w, r, err)
		return nil
	}
	return author
}

// profileFollow is a no-op when following yourself or someone already
// followed.
func (h *Handlers) profileFollow(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string) {
	author := h.followTarget(w, r, rc, username)
	if author == nil {
		return
	}
	if author.ID != rc.Viewer.ID {
		created, err := rc.Store.Follow(rc.Ctx, rc.Viewer.ID, author.ID)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		if created {
			h.infoLog.Printf("%q now follows %q", rc.Viewer.Username, author.Username)
			h.notify(rc.Ctx, rc.Viewer, author.ID, NotifyFollow,
				rc.Viewer.Username+" started following you", "/"+rc.Viewer.Username+"/")
		}
	}
	http.Redirect(w, r, "/"+username+"/", http.StatusFound)
}

func (h *Handlers) profileUnfollow(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string) {
	author := h.followTarget(w, r, rc, username)
	if author == nil {
		return
	}
	deleted, err := rc.Store.Unfollow(rc.Ctx, rc.Viewer.ID, author.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !deleted {
		h.notFound(w, r, rc)
		return
	}
	http.Redirect(w, r, "/"+username+"/", http.StatusFound)
}

// likeTarget resolves the post for like and unlike; both only accept POST.
func (h *Handlers) likeTarget(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string, id int64) *Post {
	if deny(w, r, LoginRequired(r, rc.Viewer)) {
		return nil
	}
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, []string{http.MethodPost})
		return nil
	}
	post, err := postFor(rc, username, id)
	if errors.Is(err, ErrNotFound) {
		h.notFound(w, r, rc)
		return nil
	}
	if err != nil {
		h.serverError(w, r, err)
		return nil
	}
	return post
}

func (h *Handlers) likePost(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string, id int64) {
	post := h.likeTarget(w, r, rc, username, id)
	if post == nil {
		return
	}
	created, err := rc.Store.Like(rc.Ctx, rc.Viewer.ID, post.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if created {
		h.notify(rc.Ctx, rc.Viewer, post.AuthorID, NotifyLike,
			rc.Viewer.Username+" liked your post", post.URL())
	}
	http.Redirect(w, r, post.URL(), http.StatusFound)
}

func (h *Handlers) unlikePost(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string, id int64) {
	post := h.likeTarget(w, r, rc, username, id)
	if post == nil {
		return
	}
	if _, err := rc.Store.Unlike(rc.Ctx, rc.Viewer.ID, post.ID); err != nil {
		h.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, post.URL(), http.StatusFound)
}

func (h *Handlers) notifications(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	if deny(w, r, LoginRequired(r, rc.Viewer)) {
		return
	}
	h.render(w, r, rc, http.StatusOK, "notifications.html", &ViewData{
		Title:         "Notifications",
		Notifications: rc.Viewer.Notifications,
	})
}

var aboutPages = map[string]string{
	"author":  "About the author",
	"tech":    "Technologies",
	"project": "About the project",
}

func (h *Handlers) about(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	page := r.PathValue("page")
	title, ok := aboutPages[page]
	if !ok {
		h.notFound(w, r, rc)
		return
	}
	h.render(w, r, rc, http.StatusOK, "about_"+page+".html", &ViewData{Title: title})
}
