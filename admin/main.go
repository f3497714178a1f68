// Admin tool: manages users, groups and posts directly in the database.
//
//	admin [-config file] createuser -username john -password secret [-email john@example.com]
//	admin [-config file] deleteuser -username john
//	admin [-config file] creategroup -title Cats -slug cats [-description "..."]
//	admin [-config file] deletegroup -slug cats
//	admin [-config file] listgroups
//	admin [-config file] deletepost -id 42
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rexlx/postbook/blog"
	"github.com/rexlx/postbook/config"
)

type command struct {
	usage string
	run   func(ctx context.Context, db *blog.Database, args []string) error
}

var commands = map[string]command{
	"createuser":  {"-username NAME -password PASS [-email ADDR]", createUser},
	"deleteuser":  {"-username NAME", deleteUser},
	"creategroup": {"-title TITLE -slug SLUG [-description TEXT]", createGroup},
	"deletegroup": {"-slug SLUG", deleteGroup},
	"listgroups":  {"", listGroups},
	"deletepost":  {"-id ID", deletePost},
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-config file] <command> [flags]\n\ncommands:\n", os.Args[0])
	for _, name := range []string{"createuser", "deleteuser", "creategroup", "deletegroup", "listgroups", "deletepost"} {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", name, commands[name].usage)
	}
}

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		log.Printf("unknown command: %s", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	db, err := blog.NewDatabase(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.CreateTables(ctx); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	if err := cmd.run(ctx, db, flag.Args()[1:]); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func createUser(ctx context.Context, db *blog.Database, args []string) error {
	fs := flag.NewFlagSet("createuser", flag.ExitOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	fs.Parse(args)

	in, form := blog.BindSignupForm(map[string][]string{
		"username": {*username},
		"email":    {*email},
		"password": {*password},
	})
	if !form.Valid() {
		for _, field := range form.ErrorFields() {
			log.Printf("%s: %s", field, form.Errors[field])
		}
		return errors.New("invalid user")
	}
	user := blog.NewUser(in.Username, in.Email)
	if err := user.SetPassword(in.Password); err != nil {
		return err
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return err
	}
	log.Printf("created user %q (%s)", user.Username, user.ID)
	return nil
}

func deleteUser(ctx context.Context, db *blog.Database, args []string) error {
	fs := flag.NewFlagSet("deleteuser", flag.ExitOnError)
	username := fs.String("username", "", "username")
	fs.Parse(args)

	user, err := db.GetUserByUsername(ctx, *username)
	if err != nil {
		return fmt.Errorf("find %q: %w", *username, err)
	}
	if err := db.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	log.Printf("deleted user %q with their posts, comments, follows and likes", user.Username)
	return nil
}

func createGroup(ctx context.Context, db *blog.Database, args []string) error {
	fs := flag.NewFlagSet("creategroup", flag.ExitOnError)
	group := &blog.Group{}
	fs.StringVar(&group.Title, "title", "", "group title")
	fs.StringVar(&group.Slug, "slug", "", "URL slug")
	fs.StringVar(&group.Description, "description", "", "description")
	fs.Parse(args)

	if err := group.Validate(); err != nil {
		return err
	}
	if err := db.CreateGroup(ctx, group); err != nil {
		return err
	}
	log.Printf("created group %q at /group/%s/ (id %d)", group.Title, group.Slug, group.ID)
	return nil
}

func deleteGroup(ctx context.Context, db *blog.Database, args []string) error {
	fs := flag.NewFlagSet("deletegroup", flag.ExitOnError)
	slug := fs.String("slug", "", "URL slug")
	fs.Parse(args)

	group, err := db.GetGroupBySlug(ctx, *slug)
	if err != nil {
		return fmt.Errorf("find group %q: %w", *slug, err)
	}
	if err := db.DeleteGroup(ctx, group.ID); err != nil {
		return err
	}
	log.Printf("deleted group %q; its posts are kept without a group", group.Slug)
	return nil
}

func listGroups(ctx context.Context, db *blog.Database, args []string) error {
	groups, err := db.ListGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		n, err := db.CountPosts(ctx, blog.PostFilter{GroupID: &g.ID})
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\t%s\t%d posts\n", g.ID, g.Slug, g.Title, n)
	}
	return nil
}

func deletePost(ctx context.Context, db *blog.Database, args []string) error {
	fs := flag.NewFlagSet("deletepost", flag.ExitOnError)
	id := fs.Int64("id", 0, "post id")
	fs.Parse(args)

	if err := db.DeletePost(ctx, *id); err != nil {
		return fmt.Errorf("delete post %d: %w", *id, err)
	}
	log.Printf("deleted post %d", *id)
	return nil
}
