package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/atinyakov/LittleHelper/internal/client/api"
	"github.com/atinyakov/LittleHelper/internal/client/prompt"
	"github.com/atinyakov/LittleHelper/internal/client/session"
	"github.com/atinyakov/LittleHelper/internal/models"
)

// DefaultURL is used when neither the flag nor the session names a server.
const DefaultURL = "http://localhost:5000"

var errNotLoggedIn = errors.New("not logged in, run `littlehelper login` first")

// Globals are flags shared by every command. It is passed to each Run.
type Globals struct {
	URL     string           `help:"Server base URL." env:"LITTLEHELPER_URL"`
	CA      string           `help:"PEM CA certificate to trust for HTTPS." type:"path"`
	Session string           `help:"Session file path." type:"path" env:"LITTLEHELPER_SESSION"`
	Timeout time.Duration    `help:"Per-request timeout." default:"10s"`
	Version kong.VersionFlag `help:"Show version and exit."`

	out    io.Writer        `kong:"-"`
	prompt *prompt.Prompter `kong:"-"`
}

func (g *Globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

func (g *Globals) prompter() *prompt.Prompter {
	if g.prompt == nil {
		g.prompt = prompt.New()
	}
	return g.prompt
}

func (g *Globals) sessionPath() (string, error) {
	if g.Session != "" {
		return g.Session, nil
	}
	return session.DefaultPath()
}

func (g *Globals) loadSession() (*session.Session, error) {
	path, err := g.sessionPath()
	if err != nil {
		return nil, err
	}
	return session.Load(path)
}

// client builds an API client. The server URL comes from the flag, then the
// saved session, then DefaultURL.
func (g *Globals) client(s *session.Session) (*api.Client, error) {
	base := strings.TrimRight(g.URL, "/")
	token := ""
	if s != nil {
		if base == "" {
			base = s.BaseURL
		}
		// A token is only valid for the server that issued it.
		if base == s.BaseURL {
			token = s.Token
		}
	}
	if base == "" {
		base = DefaultURL
	}
	c := api.New(base, token)
	if g.Timeout > 0 {
		c.HTTP.Timeout = g.Timeout
	}
	if g.CA != "" {
		if err := c.TrustCA(g.CA); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// authed returns a client carrying the saved token.
func (g *Globals) authed() (*api.Client, error) {
	s, err := g.loadSession()
	if err != nil {
		return nil, err
	}
	if !s.LoggedIn() {
		return nil, errNotLoggedIn
	}
	return g.client(s)
}

func (g *Globals) ask(value *string, label string) error {
	if *value != "" {
		return nil
	}
	v, err := g.prompter().Line(label)
	if err != nil {
		return err
	}
	*value = v
	return nil
}

// RegisterCmd creates an account.
type RegisterCmd struct {
	Username string `help:"Login name."`
	Email    string `help:"E-mail address."`
	Name     string `help:"Display name."`
}

func (c *RegisterCmd) Run(g *Globals) error {
	for _, q := range []struct {
		v     *string
		label string
	}{{&c.Username, "Username"}, {&c.Email, "Email"}, {&c.Name, "Name"}} {
		if err := g.ask(q.v, q.label); err != nil {
			return err
		}
	}
	password, err := g.prompter().Password("Password")
	if err != nil {
		return err
	}
	client, err := g.client(nil)
	if err != nil {
		return err
	}
	a, err := client.Register(context.Background(), api.RegisterRequest{
		Username: c.Username,
		Email:    c.Email,
		Password: password,
		Name:     c.Name,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Registered %s (%s). Run `littlehelper login` to start.\n", a.Username, a.ID)
	return nil
}

// LoginCmd logs in and saves the token.
type LoginCmd struct {
	Email string `help:"E-mail address."`
}

func (c *LoginCmd) Run(g *Globals) error {
	if err := g.ask(&c.Email, "Email"); err != nil {
		return err
	}
	password, err := g.prompter().Password("Password")
	if err != nil {
		return err
	}
	client, err := g.client(nil)
	if err != nil {
		return err
	}
	resp, err := client.Login(context.Background(), c.Email, password)
	if err != nil {
		return err
	}
	path, err := g.sessionPath()
	if err != nil {
		return err
	}
	s := &session.Session{BaseURL: client.BaseURL, Email: resp.Email, Token: resp.Token}
	if err := s.Save(path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(g.stdout(), "Logged in as %s.\n", resp.Username)
	return nil
}

// LogoutCmd removes the saved session.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(g *Globals) error {
	path, err := g.sessionPath()
	if err != nil {
		return err
	}
	if err := session.Clear(path); err != nil {
		return err
	}
	fmt.Fprintln(g.stdout(), "Logged out.")
	return nil
}

// MeCmd prints the current account.
type MeCmd struct{}

func (c *MeCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	a, err := client.Me(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "%s <%s>\nname: %s\ncolor profile: %s\nmember since: %s\n",
		a.Username, a.Email, a.Name, a.ColorProfile, a.CreatedAt.Format(time.DateOnly))
	return nil
}

// PasswdCmd changes the password.
type PasswdCmd struct{}

func (c *PasswdCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	current, err := g.prompter().Password("Current password")
	if err != nil {
		return err
	}
	next, err := g.prompter().Password("New password")
	if err != nil {
		return err
	}
	if err := client.ChangePassword(context.Background(), current, next); err != nil {
		return err
	}
	fmt.Fprintln(g.stdout(), "Password updated.")
	return nil
}

// ColorCmd switches the color profile.
type ColorCmd struct {
	Profile string `arg:"" enum:"blue,purple,green,orange,red,teal,dark,light" help:"One of ${enum}."`
}

func (c *ColorCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	if err := client.UpdateColorProfile(context.Background(), models.ColorProfile(c.Profile)); err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Color profile set to %s.\n", c.Profile)
	return nil
}

// NotesCmd groups the note commands.
type NotesCmd struct {
	List   NotesListCmd   `cmd:"" default:"1" help:"List notes."`
	Add    NotesAddCmd    `cmd:"" help:"Add a note."`
	Edit   NotesEditCmd   `cmd:"" help:"Edit a note."`
	Delete NotesDeleteCmd `cmd:"" help:"Delete a note."`
	Search NotesSearchCmd `cmd:"" help:"Search notes by title and content."`
}

// NotesListCmd lists notes.
type NotesListCmd struct {
	Sort  string `help:"Field to sort by (title, createdAt, updatedAt)."`
	Order string `help:"asc or desc."`
}

func (c *NotesListCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	notes, err := client.ListNotes(context.Background(), c.Sort, c.Order)
	if err != nil {
		return err
	}
	printNotes(g.stdout(), notes)
	return nil
}

// NotesAddCmd creates a note. Content is prompted for when omitted.
type NotesAddCmd struct {
	Title   string `help:"Note title."`
	Content string `help:"Note body."`
	Public  bool   `help:"Mark the note public."`
}

func (c *NotesAddCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	if err := g.ask(&c.Title, "Title"); err != nil {
		return err
	}
	if c.Content == "" {
		if c.Content, err = g.prompter().Multiline("Content"); err != nil {
			return err
		}
	}
	n, err := client.CreateNote(context.Background(), c.Title, c.Content, c.Public)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Added note %s.\n", n.ID)
	return nil
}

// NotesEditCmd changes the given fields of a note.
type NotesEditCmd struct {
	ID      string `arg:"" help:"Note id."`
	Title   string `help:"New title."`
	Content string `help:"New body."`
	Public  bool   `help:"Mark the note public." xor:"visibility"`
	Private bool   `help:"Mark the note private." xor:"visibility"`
}

func (c *NotesEditCmd) Run(g *Globals) error {
	var p models.NotePatch
	if c.Title != "" {
		p.Title = &c.Title
	}
	if c.Content != "" {
		p.Content = &c.Content
	}
	if c.Public || c.Private {
		public := c.Public
		p.IsPublic = &public
	}
	if p.Title == nil && p.Content == nil && p.IsPublic == nil {
		return errors.New("nothing to change, pass --title, --content, --public or --private")
	}
	client, err := g.authed()
	if err != nil {
		return err
	}
	n, err := client.UpdateNote(context.Background(), c.ID, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Updated note %s.\n", n.ID)
	return nil
}

// NotesDeleteCmd removes a note.
type NotesDeleteCmd struct {
	ID string `arg:"" help:"Note id."`
}

func (c *NotesDeleteCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	if err := client.DeleteNote(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Deleted note %s.\n", c.ID)
	return nil
}

// NotesSearchCmd searches notes.
type NotesSearchCmd struct {
	Query []string `arg:"" help:"Text to look for."`
}

func (c *NotesSearchCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	notes, err := client.SearchNotes(context.Background(), strings.Join(c.Query, " "))
	if err != nil {
		return err
	}
	printNotes(g.stdout(), notes)
	return nil
}

// TasksCmd groups the task commands.
type TasksCmd struct {
	List     TasksListCmd   `cmd:"" default:"1" help:"List tasks."`
	Add      TasksAddCmd    `cmd:"" help:"Add a task."`
	Start    TransitionCmd  `cmd:"" help:"Start or resume tracking time."`
	Pause    TransitionCmd  `cmd:"" help:"Pause tracking."`
	Complete TransitionCmd  `cmd:"" help:"Mark a task completed."`
	Delete   TasksDeleteCmd `cmd:"" help:"Delete a task."`
}

// TasksListCmd lists tasks.
type TasksListCmd struct{}

func (c *TasksListCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	tasks, err := client.ListTasks(context.Background())
	if err != nil {
		return err
	}
	printTasks(g.stdout(), tasks)
	return nil
}

// TasksAddCmd creates a task.
type TasksAddCmd struct {
	Title       string `help:"Task title."`
	Description string `help:"Task description."`
}

func (c *TasksAddCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	if err := g.ask(&c.Title, "Title"); err != nil {
		return err
	}
	t, err := client.CreateTask(context.Background(), c.Title, c.Description)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Added task %s.\n", t.ID)
	return nil
}

// TransitionCmd applies the transition named by the invoked command.
type TransitionCmd struct {
	ID string `arg:"" help:"Task id."`
}

func (c *TransitionCmd) Run(g *Globals, kctx *kong.Context) error {
	tr := models.Transition(kctx.Selected().Name)
	client, err := g.authed()
	if err != nil {
		return err
	}
	t, err := client.Transition(context.Background(), c.ID, tr)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Task %s is %s, tracked %s.\n", t.ID, t.Status, formatMillis(t.TotalTime))
	return nil
}

// TasksDeleteCmd removes a task.
type TasksDeleteCmd struct {
	ID string `arg:"" help:"Task id."`
}

func (c *TasksDeleteCmd) Run(g *Globals) error {
	client, err := g.authed()
	if err != nil {
		return err
	}
	if err := client.DeleteTask(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "Deleted task %s.\n", c.ID)
	return nil
}

func printNotes(w io.Writer, notes []models.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPUBLIC\tUPDATED")
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", n.ID, n.Title, n.IsPublic, n.UpdatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func printTasks(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tTRACKED")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, formatMillis(t.TotalTime))
	}
	_ = tw.Flush()
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}
