package blog

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	slugRe     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	// report errors under the html field name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRe.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	}))
	return v
}

// FormResult is the outcome of binding a submission: the (trimmed) values to
// echo back into the form and a message per invalid field.
type FormResult struct {
	Values map[string]string
	Errors map[string]string
}

func (f FormResult) Valid() bool {
	return len(f.Errors) == 0
}

func (f *FormResult) AddError(field, message string) {
	if f.Errors == nil {
		f.Errors = make(map[string]string)
	}
	if _, ok := f.Errors[field]; !ok {
		f.Errors[field] = message
	}
}

func (f FormResult) Get(field string) string {
	return f.Values[field]
}

// Fields in the order they should be reported.
func (f FormResult) ErrorFields() []string {
	fields := make([]string, 0, len(f.Errors))
	for k := range f.Errors {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// emptyForm is an unbound form with every field present and blank.
func emptyForm(fields ...string) FormResult {
	return newFormResult(url.Values{}, fields...)
}

func newFormResult(values url.Values, fields ...string) FormResult {
	res := FormResult{Values: make(map[string]string, len(fields))}
	for _, name := range fields {
		res.Values[name] = strings.TrimSpace(values.Get(name))
	}
	return res
}

func (f *FormResult) check(input any) {
	err := validate.Struct(input)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		f.AddError("__all__", err.Error())
		return
	}
	for _, fe := range verrs {
		f.AddError(fe.Field(), fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "number":
		return "Select a valid choice."
	case "slug":
		return "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	default:
		return "Enter a valid value."
	}
}

type PostInput struct {
	Title    string `form:"title" validate:"max=200"`
	Subtitle string `form:"subtitle" validate:"max=200"`
	Text     string `form:"text" validate:"required"`
	Group    string `form:"group" validate:"omitempty,number"`
}

var postFields = []string{"title", "subtitle", "text", "group"}

// BindPostForm checks the text fields of a post submission. The group's
// existence and the image are checked by the handler.
func BindPostForm(values url.Values) (PostInput, FormResult) {
	res := newFormResult(values, postFields...)
	in := PostInput{
		Title:    res.Values["title"],
		Subtitle: res.Values["subtitle"],
		Text:     res.Values["text"],
		Group:    res.Values["group"],
	}
	res.check(in)
	return in, res
}

// PostFormValues pre-fills the post form from an existing post.
func PostFormValues(p *Post) FormResult {
	res := FormResult{Values: map[string]string{
		"title":    p.Title,
		"subtitle": p.Subtitle,
		"text":     p.Text,
		"group":    "",
	}}
	if p.GroupID != nil {
		res.Values["group"] = fmt.Sprint(*p.GroupID)
	}
	return res
}

type CommentInput struct {
	Text string `form:"text" validate:"required"`
}

func BindCommentForm(values url.Values) (CommentInput, FormResult) {
	res := newFormResult(values, "text")
	in := CommentInput{Text: res.Values["text"]}
	res.check(in)
	return in, res
}

type SignupInput struct {
	Username string `form:"username" validate:"required,max=150,username"`
	Email    string `form:"email" validate:"omitempty,email"`
	Password string `form:"password" validate:"required,min=8"`
}

// reservedUsernames would be shadowed by the site's own top-level routes.
var reservedUsernames = map[string]bool{
	"about": true, "auth": true, "follow": true, "group": true,
	"media": true, "new": true, "notifications": true,
}

func BindSignupForm(values url.Values) (SignupInput, FormResult) {
	res := newFormResult(values, "username", "email")
	in := SignupInput{
		Username: res.Values["username"],
		Email:    res.Values["email"],
		Password: values.Get("password"),
	}
	res.check(in)
	if reservedUsernames[strings.ToLower(in.Username)] {
		res.AddError("username", "This username is reserved.")
	}
	return in, res
}

type LoginInput struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

func BindLoginForm(values url.Values) (LoginInput, FormResult) {
	res := newFormResult(values, "username")
	in := LoginInput{Username: res.Values["username"], Password: values.Get("password")}
	res.check(in)
	return in, res
}

// Validate checks a group before it is stored.
func (g *Group) Validate() error {
	var res FormResult
	res.check(g)
	if res.Valid() {
		return nil
	}
	var parts []string
	for _, field := range res.ErrorFields() {
		parts = append(parts, field+": "+res.Errors[field])
	}
	return errors.New(strings.Join(parts, "; "))
}
