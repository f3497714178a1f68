package blog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

const (
	sessionUserKey = "userID"
	loginPath      = "/auth/login/"
)

// RequestContext carries what a handler needs for one request. It is built
// fresh for every request and never shared.
type RequestContext struct {
	Ctx      context.Context
	Store    Store
	Viewer   *User // nil for anonymous requests
	PageSize int
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, rc *RequestContext)

// with resolves the session's user and hands a RequestContext to fn.
func (h *Handlers) with(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer, err := h.viewer(r)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		rc := &RequestContext{
			Ctx:      r.Context(),
			Store:    h.store,
			Viewer:   viewer,
			PageSize: h.pageSize,
		}
		fn(w, r, rc)
	}
}

func (h *Handlers) viewer(r *http.Request) (*User, error) {
	id := h.Session.GetString(r.Context(), sessionUserKey)
	if id == "" {
		return nil, nil
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		// the account is gone; forget it
		h.Session.Remove(r.Context(), sessionUserKey)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Sanitize()
	return user, nil
}

// AuthzResult is the verdict of an access guard: either Allowed, or a
// location the client should be sent to instead.
type AuthzResult struct {
	Allowed    bool
	RedirectTo string
}

func allowed() AuthzResult {
	return AuthzResult{Allowed: true}
}

func redirectTo(location string) AuthzResult {
	return AuthzResult{RedirectTo: location}
}

// LoginRequired sends anonymous viewers to the login page, remembering
// where they were going.
func LoginRequired(r *http.Request, viewer *User) AuthzResult {
	if viewer != nil {
		return allowed()
	}
	return redirectTo(LoginURL(r.URL.RequestURI()))
}

// LoginURL is the login page with a return-to parameter.
func LoginURL(next string) string {
	return loginPath + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// AuthorGuard lets only the post's author through. Anyone else is sent to
// the post page. ErrNotFound is returned when the post does not exist.
func AuthorGuard(ctx context.Context, store Store, viewer *User, username string, postID int64) (AuthzResult, error) {
	post, err := store.GetPost(ctx, postID)
	if err != nil {
		return AuthzResult{}, err
	}
	if viewer == nil || viewer.ID != post.AuthorID {
		return redirectTo(PostURL(username, postID)), nil
	}
	return allowed(), nil
}

// deny answers the request when a guard refused it. It reports whether the
// handler must stop.
func deny(w http.ResponseWriter, r *http.Request, authz AuthzResult) bool {
	if authz.Allowed {
		return false
	}
	http.Redirect(w, r, authz.RedirectTo, http.StatusFound)
	return true
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (h *Handlers) logIn(r *http.Request, user *User) error {
	if err := h.Session.RenewToken(r.Context()); err != nil {
		return err
	}
	h.Session.Put(r.Context(), sessionUserKey, user.ID)
	return nil
}

func (h *Handlers) signup(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	data := &ViewData{Title: "Sign up", Form: emptyForm("username", "email")}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.render(w, r, rc, http.StatusOK, "signup.html", data)
		return
	case http.MethodPost:
	default:
		h.methodNotAllowed(w, []string{http.MethodGet, http.MethodPost})
		return
	}

	if err := r.ParseForm(); err != nil {
		h.clientError(w, http.StatusBadRequest)
		return
	}
	in, form := BindSignupForm(r.PostForm)
	if form.Valid() {
		user := NewUser(in.Username, in.Email)
		if err := user.SetPassword(in.Password); err != nil {
			h.serverError(w, r, err)
			return
		}
		err := rc.Store.CreateUser(rc.Ctx, user)
		switch {
		case errors.Is(err, ErrUsernameTaken):
			form.AddError("username", "A user with that username already exists.")
		case err != nil:
			h.serverError(w, r, err)
			return
		default:
			h.infoLog.Printf("User registered: %q (ID %s)", user.Username, user.ID)
			if err := h.logIn(r, user); err != nil {
				h.serverError(w, r, err)
				return
			}
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}
	data.Form = form
	h.render(w, r, rc, http.StatusOK, "signup.html", data)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	data := &ViewData{Title: "Log in", Next: safeNext(r.URL.Query().Get("next")), Form: emptyForm("username")}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.render(w, r, rc, http.StatusOK, "login.html", data)
		return
	case http.MethodPost:
	default:
		h.methodNotAllowed(w, []string{http.MethodGet, http.MethodPost})
		return
	}

	if err := r.ParseForm(); err != nil {
		h.clientError(w, http.StatusBadRequest)
		return
	}
	if next := r.PostForm.Get("next"); next != "" {
		data.Next = safeNext(next)
	}
	in, form := BindLoginForm(r.PostForm)
	if form.Valid() {
		user, err := rc.Store.GetUserByUsername(rc.Ctx, in.Username)
		if err != nil && !errors.Is(err, ErrNotFound) {
			h.serverError(w, r, err)
			return
		}
		ok := false
		if user != nil {
			if ok, err = user.PasswordMatches(in.Password); err != nil {
				h.serverError(w, r, err)
				return
			}
		}
		if ok {
			if err := h.logIn(r, user); err != nil {
				h.serverError(w, r, err)
				return
			}
			h.infoLog.Printf("Login successful: %q", user.Username)
			http.Redirect(w, r, data.Next, http.StatusFound)
			return
		}
		form.AddError("__all__", "Please enter a correct username and password.")
	}
	data.Form = form
	h.render(w, r, rc, http.StatusOK, "login.html", data)
}

// logout only accepts POST so a cross-site link or image cannot end the
// session.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, []string{http.MethodPost})
		return
	}
	if err := h.Session.RenewToken(r.Context()); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.Session.Remove(r.Context(), sessionUserKey)
	http.Redirect(w, r, "/", http.StatusFound)
}
