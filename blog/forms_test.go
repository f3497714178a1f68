package blog

import (
	"net/url"
	"strings"
	"testing"
)

func TestBindPostForm(t *testing.T) {
	tests := []struct {
		name       string
		values     url.Values
		wantErrors []string
	}{
		{"text only", url.Values{"text": {"hello"}}, nil},
		{"all fields", url.Values{"text": {"hi"}, "title": {"T"}, "subtitle": {"S"}, "group": {"3"}}, nil},
		{"empty text", url.Values{"text": {""}}, []string{"text"}},
		{"blank text", url.Values{"text": {"   \n"}}, []string{"text"}},
		{"long title", url.Values{"text": {"x"}, "title": {strings.Repeat("a", 201)}}, []string{"title"}},
		{"bad group", url.Values{"text": {"x"}, "group": {"abc"}}, []string{"group"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, res := BindPostForm(tt.values)
			if got := res.ErrorFields(); strings.Join(got, ",") != strings.Join(tt.wantErrors, ",") {
				t.Fatalf("error fields = %v, want %v (%v)", got, tt.wantErrors, res.Errors)
			}
			if res.Valid() != (len(tt.wantErrors) == 0) {
				t.Fatalf("Valid() = %v", res.Valid())
			}
		})
	}
}

func TestBindPostFormTrims(t *testing.T) {
	in, res := BindPostForm(url.Values{"text": {"  body  "}, "title": {" t "}})
	if !res.Valid() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if in.Text != "body" || in.Title != "t" {
		t.Fatalf("got %+v", in)
	}
	if res.Get("text") != "body" {
		t.Fatalf("echoed value = %q", res.Get("text"))
	}
}

func TestBindCommentForm(t *testing.T) {
	if _, res := BindCommentForm(url.Values{}); res.Valid() || res.Errors["text"] != "This field is required." {
		t.Fatalf("errors = %v", res.Errors)
	}
	if in, res := BindCommentForm(url.Values{"text": {"nice"}}); !res.Valid() || in.Text != "nice" {
		t.Fatalf("got %+v %v", in, res.Errors)
	}
}

func TestBindSignupForm(t *testing.T) {
	_, res := BindSignupForm(url.Values{"username": {"bad name"}, "email": {"nope"}, "password": {"short"}})
	for _, f := range []string{"username", "email", "password"} {
		if _, ok := res.Errors[f]; !ok {
			t.Errorf("expected error on %s, got %v", f, res.Errors)
		}
	}
	in, res := BindSignupForm(url.Values{"username": {"jane.doe"}, "password": {"long enough"}})
	if !res.Valid() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if _, ok := res.Values["password"]; ok {
		t.Fatal("password must not be echoed back")
	}
	if in.Password != "long enough" {
		t.Fatalf("password = %q", in.Password)
	}
}

func TestGroupValidate(t *testing.T) {
	if err := (&Group{Title: "Cats", Slug: "cats_and-dogs"}).Validate(); err != nil {
		t.Fatalf("valid group rejected: %v", err)
	}
	err := (&Group{Title: "", Slug: "no spaces"}).Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "slug") || !strings.Contains(err.Error(), "title") {
		t.Fatalf("error = %v", err)
	}
}

func TestBindSignupFormReservedUsername(t *testing.T) {
	_, res := BindSignupForm(url.Values{"username": {"Follow"}, "password": {"long enough"}})
	if res.Errors["username"] != "This username is reserved." {
		t.Fatalf("errors = %v", res.Errors)
	}
}
