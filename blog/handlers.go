// blog/handlers.go
package blog

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Options configures Handlers. Zero values pick the defaults.
type Options struct {
	PageSize      int
	IndexCacheTTL time.Duration
	MediaDir      string
	Cache         PageCache
	Notifier      Notifier
	Session       *scs.SessionManager
	InfoLog       *log.Logger
	ErrorLog      *log.Logger
}

type Handlers struct {
	Session *scs.SessionManager

	store     Store
	templates map[string]*template.Template
	cache     PageCache
	notifier  Notifier
	pageSize  int
	indexTTL  time.Duration
	mediaDir  string
	infoLog   *log.Logger
	errorLog  *log.Logger
}

func NewHandlers(store Store, opts Options) (*Handlers, error) {
	tpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	h := &Handlers{
		Session:   opts.Session,
		store:     store,
		templates: tpl,
		cache:     opts.Cache,
		notifier:  opts.Notifier,
		pageSize:  opts.PageSize,
		indexTTL:  opts.IndexCacheTTL,
		mediaDir:  opts.MediaDir,
		infoLog:   opts.InfoLog,
		errorLog:  opts.ErrorLog,
	}
	if h.Session == nil {
		h.Session = scs.New()
	}
	if h.cache == nil {
		h.cache = NewMemoryPageCache()
	}
	if h.notifier == nil {
		h.notifier = StoreNotifier{Store: store}
	}
	if h.pageSize < 1 {
		h.pageSize = DefaultPageSize
	}
	if h.mediaDir == "" {
		h.mediaDir = "media"
	}
	if h.infoLog == nil {
		h.infoLog = log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	}
	if h.errorLog == nil {
		h.errorLog = log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)
	}
	return h, nil
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /{$}", h.cachePage(h.indexTTL, h.with(h.index)))
	mux.HandleFunc("GET /group/{slug}/{$}", h.with(h.groupPosts))
	mux.HandleFunc("/new/{$}", h.with(h.newPost))
	mux.HandleFunc("GET /follow/{$}", h.with(h.followIndex))
	mux.HandleFunc("GET /notifications/{$}", h.with(h.notifications))
	mux.HandleFunc("GET /about/{page}/{$}", h.with(h.about))
	mux.HandleFunc("/auth/signup/{$}", h.with(h.signup))
	mux.HandleFunc("/auth/login/{$}", h.with(h.login))
	mux.HandleFunc("/auth/logout/{$}", h.with(h.logout))
	mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(mediaFS{root: http.Dir(h.mediaDir)})))
	// everything under /<username>/
	mux.HandleFunc("/", h.with(h.userRoutes))
}

// Routes returns the full handler with sessions loaded and saved.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h.Session.LoadAndSave(mux)
}

// userRoutes dispatches the paths that start with a username:
//
//	/<username>/
//	/<username>/follow/  /<username>/unfollow/
//	/<username>/<post_id>/
//	/<username>/<post_id>/edit/  .../comment/  .../like/  .../unlike/
func (h *Handlers) userRoutes(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	if !strings.HasSuffix(r.URL.Path, "/") || r.URL.Path == "/" {
		h.notFound(w, r, rc)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	username := parts[0]

	switch len(parts) {
	case 1:
		h.profile(w, r, rc, username)
		return
	case 2:
		switch parts[1] {
		case "follow":
			h.profileFollow(w, r, rc, username)
			return
		case "unfollow":
			h.profileUnfollow(w, r, rc, username)
			return
		}
		if id, ok := parsePostID(parts[1]); ok {
			h.postView(w, r, rc, username, id)
			return
		}
	case 3:
		id, ok := parsePostID(parts[1])
		if !ok {
			break
		}
		switch parts[2] {
		case "edit":
			h.postEdit(w, r, rc, username, id)
			return
		case "comment":
			h.addComment(w, r, rc, username, id)
			return
		case "like":
			h.likePost(w, r, rc, username, id)
			return
		case "unlike":
			h.unlikePost(w, r, rc, username, id)
			return
		}
	}
	h.notFound(w, r, rc)
}

func parsePostID(s string) (int64, bool) {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func allowMethods(r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m || (m == http.MethodGet && r.Method == http.MethodHead) {
			return true
		}
	}
	return false
}

// postsPage counts the posts matching filter and loads the requested page.
func (h *Handlers) postsPage(r *http.Request, rc *RequestContext, filter PostFilter) ([]Post, PaginationData, error) {
	total, err := rc.Store.CountPosts(rc.Ctx, filter)
	if err != nil {
		return nil, PaginationData{}, err
	}
	page := Paginate(r.URL.Query().Get("page"), total, rc.PageSize)
	posts, err := rc.Store.ListPosts(rc.Ctx, filter, page.Limit(), page.Offset())
	if err != nil {
		return nil, PaginationData{}, err
	}
	return posts, page, nil
}

// postFor loads the post and checks that username wrote it.
func postFor(rc *RequestContext, username string, id int64) (*Post, error) {
	post, err := rc.Store.GetPost(rc.Ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Author != username {
		return nil, ErrNotFound
	}
	return post, nil
}

// index lists every post, newest first.
func (h *Handlers) index(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	posts, page, err := h.postsPage(r, rc, PostFilter{})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, rc, http.StatusOK, "index.html", &ViewData{
		Title:      "Latest posts",
		Posts:      posts,
		Pagination: page,
	})
}

func (h *Handlers) groupPosts(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	group, err := rc.Store.GetGroupBySlug(rc.Ctx, r.PathValue("slug"))
	if errors.Is(err, ErrNotFound) {
		h.notFound(w, r, rc)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	posts, page, err := h.postsPage(r, rc, PostFilter{GroupID: &group.ID})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, rc, http.StatusOK, "group.html", &ViewData{
		Title:      group.Title,
		Group:      group,
		Posts:      posts,
		Pagination: page,
	})
}

func (h *Handlers) profile(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string) {
	if !allowMethods(r, http.MethodGet) {
		h.methodNotAllowed(w, []string{http.MethodGet})
		return
	}
	author, err := rc.Store.GetUserByUsername(rc.Ctx, username)
	if errors.Is(err, ErrNotFound) {
		h.notFound(w, r, rc)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	author.Sanitize()

	posts, page, err := h.postsPage(r, rc, PostFilter{AuthorID: author.ID})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data := &ViewData{
		Title:      author.Username,
		Author:     author,
		Posts:      posts,
		Pagination: page,
		PostsCount: page.TotalItems,
	}
	if err := h.fillAuthor(rc, data); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, rc, http.StatusOK, "profile.html", data)
}

// fillAuthor adds data.Author's follow counters and whether the viewer
// follows them.
func (h *Handlers) fillAuthor(rc *RequestContext, data *ViewData) error {
	stats, err := rc.Store.GetFollowStats(rc.Ctx, data.Author.ID)
	if err != nil {
		return err
	}
	data.Stats = stats
	if rc.Viewer != nil {
		data.Following, err = rc.Store.IsFollowing(rc.Ctx, rc.Viewer.ID, data.Author.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) postView(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string, id int64) {
	if !allowMethods(r, http.MethodGet) {
		h.methodNotAllowed(w, []string{http.MethodGet})
		return
	}
	post, err := postFor(rc, username, id)
	if errors.Is(err, ErrNotFound) {
		h.notFound(w, r, rc)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	author, err := rc.Store.GetUserByID(rc.Ctx, post.AuthorID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	author.Sanitize()

	data := &ViewData{
		Title:  post.Title,
		Author: author,
		Post:   post,
		Form:   emptyForm("text"),
	}
	if data.Title == "" {
		data.Title = "Post by " + author.Username
	}
	if data.Comments, err = rc.Store.ListComments(rc.Ctx, post.ID); err != nil {
		h.serverError(w, r, err)
		return
	}
	if data.PostsCount, err = rc.Store.CountPosts(rc.Ctx, PostFilter{AuthorID: author.ID}); err != nil {
		h.serverError(w, r, err)
		return
	}
	if data.Likes, err = rc.Store.CountLikes(rc.Ctx, post.ID); err != nil {
		h.serverError(w, r, err)
		return
	}
	if rc.Viewer != nil {
		if data.Liked, err = rc.Store.HasLiked(rc.Ctx, rc.Viewer.ID, post.ID); err != nil {
			h.serverError(w, r, err)
			return
		}
	}
	if err := h.fillAuthor(rc, data); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, rc, http.StatusOK, "post.html", data)
}

// parsePostForm parses urlencoded and multipart bodies alike.
func parsePostForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(MaxImageSize + 1<<20)
	}
	return r.ParseForm()
}

// bindPost validates a post submission, including the group choice and the
// optional image. The image is only read, not stored.
func (h *Handlers) bindPost(r *http.Request, rc *RequestContext) (PostInput, *int64, *Upload, FormResult, error) {
	in, form := BindPostForm(r.PostForm)

	var groupID *int64
	if in.Group != "" && form.Errors["group"] == "" {
		id, _ := strconv.ParseInt(in.Group, 10, 64)
		group, err := rc.Store.GetGroup(rc.Ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			form.AddError("group", "Select a valid choice. That choice is not one of the available choices.")
		case err != nil:
			return in, nil, nil, form, err
		default:
			groupID = &group.ID
		}
	}

	var upload *Upload
	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		form.AddError("image", imageMessage(err))
	default:
		defer file.Close()
		upload, err = ReadImage(file)
		if err != nil {
			if !errors.Is(err, ErrNotAnImage) && !errors.Is(err, ErrImageTooLarge) {
				return in, nil, nil, form, err
			}
			form.AddError("image", imageMessage(err))
		}
	}
	return in, groupID, upload, form, nil
}

func (h *Handlers) renderPostForm(w http.ResponseWriter, r *http.Request, rc *RequestContext, data *ViewData) {
	groups, err := rc.Store.ListGroups(rc.Ctx)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data.Groups = groups
	if data.Form.Values == nil {
		data.Form = emptyForm(postFields...)
	}
	h.render(w, r, rc, http.StatusOK, "post_form.html", data)
}

func (h *Handlers) newPost(w http.ResponseWriter, r *http.Request, rc *RequestContext) {
	if deny(w, r, LoginRequired(r, rc.Viewer)) {
		return
	}
	data := &ViewData{Title: "New post"}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.renderPostForm(w, r, rc, data)
		return
	case http.MethodPost:
	default:
		h.methodNotAllowed(w, []string{http.MethodGet, http.MethodPost})
		return
	}

	if err := parsePostForm(r); err != nil {
		h.clientError(w, http.StatusBadRequest)
		return
	}
	in, groupID, upload, form, err := h.bindPost(r, rc)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !form.Valid() {
		data.Form = form
		h.renderPostForm(w, r, rc, data)
		return
	}

	post := &Post{
		Title:    in.Title,
		Subtitle: in.Subtitle,
		Text:     in.Text,
		AuthorID: rc.Viewer.ID,
		Author:   rc.Viewer.Username,
		GroupID:  groupID,
	}
	if upload != nil {
		if post.Image, err = upload.Save(h.mediaDir); err != nil {
			h.serverError(w, r, err)
			return
		}
	}
	if err := rc.Store.CreatePost(rc.Ctx, post); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.infoLog.Printf("Post created: ID=%d, Author=%q", post.ID, rc.Viewer.Username)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handlers) postEdit(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string, id int64) {
	if deny(w, r, LoginRequired(r, rc.Viewer)) {
		return
	}
	authz, err := AuthorGuard(rc.Ctx, rc.Store, rc.Viewer, username, id)
	if errors.Is(err, ErrNotFound) {
		h.notFound(w, r, rc)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if deny(w, r, authz) {
		return
	}

	post, err := postFor(rc, username, id)
	if errors.Is(err, ErrNotFound) {
		h.notFound(w, r, rc)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	data := &ViewData{Title: "Edit post", Post: post, IsEdit: true}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		data.Form = PostFormValues(post)
		h.renderPostForm(w, r, rc, data)
		return
	case http.MethodPost:
	default:
		h.methodNotAllowed(w, []string{http.MethodGet, http.MethodPost})
		return
	}

	if err := parsePostForm(r); err != nil {
		h.clientError(w, http.StatusBadRequest)
		return
	}
	in, groupID, upload, form, err := h.bindPost(r, rc)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !form.Valid() {
		data.Form = form
		h.renderPostForm(w, r, rc, data)
		return
	}

	post.Title = in.Title
	post.Subtitle = in.Subtitle
	post.Text = in.Text
	post.GroupID = groupID
	if upload != nil {
		if post.Image, err = upload.Save(h.mediaDir); err != nil {
			h.serverError(w, r, err)
			return
		}
	}
	if err := rc.Store.UpdatePost(rc.Ctx, post); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.infoLog.Printf("Post updated: ID=%d, Author=%q", post.ID, username)
	http.Redirect(w, r, PostURL(username, id), http.StatusFound)
}

// addComment always ends on the post page. An invalid comment is dropped
// without telling the user.
func (h *Handlers) addComment(w http.ResponseWriter, r *http.Request, rc *RequestContext, username string, id int64) {
	if deny(w, r, LoginRequired(r, rc.Viewer)) {
		return
	}
	post, err := postFor(rc, username, id)
	if errors.Is(err, ErrNotFound) {
		h.notFound(w, r, rc)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			h.clientError(w, http.StatusBadRequest)
			return
		}
		in, form := BindCommentForm(r.PostForm)
		if form.Valid() {
			comment := &Comment{
				PostID:   post.ID,
				AuthorID: rc.Viewer.ID,
				Author:   rc.Viewer.Username,
				Text:     in.Text,
			}
			if err := rc.Store.CreateComment(rc.Ctx, comment); err != nil {
				h.serverError(w, r, err)
				return
			}
			h.notify(rc.Ctx, rc.Viewer, post.AuthorID, NotifyComment,
				rc.Viewer.Username+" commented on your post", post.URL())
		} else {
			h.infoLog.Printf("Discarding invalid comment on post %d from %q", post.ID, rc.Viewer.Username)
		}
	}
	http.Redirect(w, r, PostURL(username, id), http.StatusFound)
}
