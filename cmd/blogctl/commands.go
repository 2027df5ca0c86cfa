package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"blog-client/internal/api"
	"blog-client/internal/domain"
	"blog-client/internal/post"
	"blog-client/internal/session"
)

type usageError string

func (e usageError) Error() string { return string(e) }

type app struct {
	session *session.Manager
	posts   *post.Store
	out     io.Writer
	json    bool
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		a.session.Logout()
		return printResult(a, domain.Result[struct{}]{Success: true, Message: "Logged out"}, "Logged out")
	case "whoami":
		return a.whoami()
	case "profile":
		return a.profile(ctx, args)
	case "posts":
		res := a.posts.FetchPosts(ctx)
		return a.printPosts(res)
	case "post":
		slug, err := slugArg(name, args)
		if err != nil {
			return err
		}
		res := a.posts.FetchPostByID(ctx, slug)
		return a.printPost(res)
	case "categories":
		res := a.posts.FetchCategories(ctx)
		if err := resultErr(res); err != nil {
			return err
		}
		if a.json {
			return a.writeJSON(res)
		}
		for _, c := range res.Data {
			fmt.Fprintf(a.out, "%d\t%s\n", c.ID, c.Title)
		}
		return nil
	case "create":
		return a.createPost(ctx, args)
	case "update":
		return a.updatePost(ctx, args)
	case "delete":
		slug, err := slugArg(name, args)
		if err != nil {
			return err
		}
		res := a.posts.DeletePost(ctx, slug)
		return printResult(a, res, res.Message)
	case "forgot-password":
		return a.forgotPassword(ctx, args)
	case "reset-password":
		return a.resetPassword(ctx, args)
	default:
		return usageError(fmt.Sprintf("unknown command %q", name))
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	username := fs.String("username", "", "account username")
	password := fs.String("password", os.Getenv("BLOG_PASSWORD"), "account password (default $BLOG_PASSWORD)")
	if err := parse(fs, args, "username", "password"); err != nil {
		return err
	}

	res := a.session.Login(ctx, *username, *password)
	return a.printUser(res, "Logged in as ")
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	email := fs.String("email", "", "email address")
	username := fs.String("username", "", "account username")
	password := fs.String("password", os.Getenv("BLOG_PASSWORD"), "account password (default $BLOG_PASSWORD)")
	if err := parse(fs, args, "email", "username", "password"); err != nil {
		return err
	}

	res := a.session.Register(ctx, *email, *username, *password)
	if err := resultErr(res); err != nil {
		return err
	}
	if res.Data == nil {
		return printResult(a, res, "Registered "+*username)
	}
	return a.printUser(res, "Registered and logged in as ")
}

func (a *app) whoami() error {
	if !a.session.IsAuthenticated() {
		return errors.New("not logged in")
	}
	return a.printUser(domain.OK(a.session.User()), "")
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := newFlagSet("profile")
	email := fs.String("email", "", "new email address")
	first := fs.String("first-name", "", "first name")
	last := fs.String("last-name", "", "last name")
	bio := fs.String("bio", "", "profile bio")
	picture := fs.String("picture", "", "path to a profile picture")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	form := api.NewForm().
		SetIf("email", *email).
		SetIf("first_name", *first).
		SetIf("last_name", *last).
		SetIf("bio", *bio)
	closeFile, err := attach(form, "profile_picture", *picture)
	if err != nil {
		return err
	}
	defer closeFile()

	res := a.session.UpdateProfile(ctx, form)
	return a.printUser(res, "Updated profile for ")
}

func (a *app) createPost(ctx context.Context, args []string) error {
	fs := newFlagSet("create")
	title := fs.String("title", "", "post title")
	description := fs.String("description", "", "post body")
	category := fs.String("category", "", "category id")
	image := fs.String("image", "", "path to a cover image")
	if err := parse(fs, args, "title", "category"); err != nil {
		return err
	}

	form := api.NewForm().
		Set("title", *title).
		Set("description", *description).
		Set("category", *category)
	closeFile, err := attach(form, "image", *image)
	if err != nil {
		return err
	}
	defer closeFile()

	return a.printPost(a.posts.CreatePost(ctx, form))
}

func (a *app) updatePost(ctx context.Context, args []string) error {
	slug, err := slugArg("update", args)
	if err != nil {
		return err
	}
	fs := newFlagSet("update")
	title := fs.String("title", "", "new title")
	description := fs.String("description", "", "new body")
	category := fs.String("category", "", "new category id")
	image := fs.String("image", "", "path to a new cover image")
	if err := fs.Parse(args[1:]); err != nil {
		return usageError(err.Error())
	}

	form := api.NewForm().
		SetIf("title", *title).
		SetIf("description", *description).
		SetIf("category", *category)
	closeFile, err := attach(form, "image", *image)
	if err != nil {
		return err
	}
	defer closeFile()

	return a.printPost(a.posts.UpdatePost(ctx, slug, form))
}

func (a *app) forgotPassword(ctx context.Context, args []string) error {
	fs := newFlagSet("forgot-password")
	email := fs.String("email", "", "account email address")
	if err := parse(fs, args, "email"); err != nil {
		return err
	}
	res := a.session.RequestPasswordReset(ctx, *email)
	return printResult(a, res, res.Message)
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := newFlagSet("reset-password")
	token := fs.String("token", "", "reset token from the email")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm", "", "new password again")
	if err := parse(fs, args, "token", "password"); err != nil {
		return err
	}
	res := a.session.ConfirmPasswordReset(ctx, *token, *password, *confirm)
	return printResult(a, res, res.Message)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse parses args and checks that each required flag ended up non-empty
func parse(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return usageError(fmt.Sprintf("%s: %v", fs.Name(), err))
	}
	for _, name := range required {
		if fs.Lookup(name).Value.String() == "" {
			return usageError(fmt.Sprintf("%s: -%s is required", fs.Name(), name))
		}
	}
	return nil
}

func slugArg(cmd string, args []string) (string, error) {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return "", usageError(cmd + ": a post slug is required")
	}
	return args[0], nil
}

// attach adds the file at path to form. The returned func closes it.
func attach(form *api.Form, field, path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	form.AddFile(field, filepath.Base(path), f)
	return func() { f.Close() }, nil
}

func resultErr[T any](res domain.Result[T]) error {
	if res.Success {
		return nil
	}
	return errors.New(res.Error)
}

func printResult[T any](a *app, res domain.Result[T], text string) error {
	if err := resultErr(res); err != nil {
		return err
	}
	if a.json {
		return a.writeJSON(res)
	}
	if text != "" {
		fmt.Fprintln(a.out, text)
	}
	return nil
}

func (a *app) printUser(res domain.Result[*domain.UserProfile], prefix string) error {
	if err := resultErr(res); err != nil {
		return err
	}
	if a.json {
		return a.writeJSON(res)
	}
	u := res.Data
	if u == nil {
		return nil
	}
	fmt.Fprintf(a.out, "%s%s (%s <%s>)\n", prefix, u.Username, u.DisplayName(), u.Email)
	if u.Profile.Bio != "" {
		fmt.Fprintf(a.out, "  %s\n", u.Profile.Bio)
	}
	return nil
}

func (a *app) printPosts(res domain.Result[[]domain.Post]) error {
	if err := resultErr(res); err != nil {
		return err
	}
	if a.json {
		return a.writeJSON(res)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tTITLE\tCATEGORY\tAUTHOR\tVIEWS")
	for _, p := range res.Data {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.Slug, p.Title, p.Category.Title, p.User.Username, p.Views)
	}
	return tw.Flush()
}

func (a *app) printPost(res domain.Result[*domain.Post]) error {
	if err := resultErr(res); err != nil {
		return err
	}
	if a.json {
		return a.writeJSON(res)
	}
	p := res.Data
	fmt.Fprintf(a.out, "%s\n%s\n\n", p.Title, p.Slug)
	fmt.Fprintf(a.out, "category: %s  author: %s  views: %d  created: %s\n",
		p.Category.Title, p.User.Username, p.Views, p.CreatedAt.Format("2006-01-02 15:04"))
	if p.Image != nil {
		fmt.Fprintf(a.out, "image: %s\n", *p.Image)
	}
	if p.Description != "" {
		fmt.Fprintf(a.out, "\n%s\n", p.Description)
	}
	return nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
