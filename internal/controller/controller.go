// Package controller turns user actions into gateway calls and store
// updates, and tracks which history item is selected.
package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"summarai/internal/apperr"
	"summarai/internal/conversation"
	"summarai/internal/export"
	"summarai/internal/gateway"
	"summarai/internal/history"
	"summarai/internal/ids"
	"summarai/internal/logging"
	"summarai/internal/session"
)

// User-facing messages.
const (
	NoSelectionMessage = "No document or video selected."
	NewChatMessage     = "New chat started."
	NewChatTitle       = "New Chat"
	NoChatsToExport    = "Select at least one chat to export."
)

// Gateway is the subset of the backend client the controller uses.
type Gateway interface {
	Login(ctx context.Context, email, password string) (gateway.Result[gateway.LoginResult], error)
	Signup(ctx context.Context, email, password, confirmPassword string) (gateway.Result[gateway.SignupResult], error)
	ProcessVideo(ctx context.Context, videoURL string) (gateway.Result[gateway.ItemResult], error)
	UploadFile(ctx context.Context, content []byte, fileName string) (gateway.Result[gateway.ItemResult], error)
	RAGQuery(ctx context.Context, itemID, question string) (gateway.Result[gateway.Answer], error)
}

// Outcome describes what a submitted action produced.
type Outcome struct {
	Origin  gateway.Origin
	ItemID  string
	Message string
	Sources []gateway.Citation
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Gateway       Gateway
	History       *history.Index
	Conversations *conversation.Store
	Session       *session.Store
	IDs           ids.Generator
	Logger        *zap.Logger
	Now           func() time.Time
}

// Controller coordinates the workspace. It is safe for concurrent use and
// never holds its lock across a backend call.
type Controller struct {
	gw       Gateway
	history  *history.Index
	convs    *conversation.Store
	session  *session.Store
	ids      ids.Generator
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.Mutex
	selected string
}

// New creates a controller with nothing selected.
func New(deps Deps) *Controller {
	c := &Controller{
		gw:      deps.Gateway,
		history: deps.History,
		convs:   deps.Conversations,
		session: deps.Session,
		ids:     deps.IDs,
		logger:  logging.OrNop(deps.Logger),
		now:     deps.Now,
	}
	if c.ids == nil {
		c.ids = ids.NewGenerator()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Selected returns the selected item id.
func (c *Controller) Selected() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.selected != ""
}

func (c *Controller) setSelected(id string) {
	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()
}

// Select makes id the current item.
func (c *Controller) Select(ctx context.Context, id string) error {
	if _, ok := c.history.Get(ctx, id); !ok {
		return apperr.InvalidState("No history item with id " + id + ".")
	}
	c.setSelected(id)
	return nil
}

// Deselect returns to the empty workspace.
func (c *Controller) Deselect() {
	c.setSelected("")
}

// Conversation returns the transcript shown for the current selection.
func (c *Controller) Conversation(ctx context.Context) []conversation.Turn {
	id, _ := c.Selected()
	return c.convs.Load(ctx, id)
}

// History returns the items in display order.
func (c *Controller) History(ctx context.Context) []history.Item {
	return c.history.List(ctx)
}

// Submit handles free text. Without a selection a YouTube link is
// processed; with one, the text is asked as a question about it. Blank
// text is ignored and yields a zero Outcome.
func (c *Controller) Submit(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, nil
	}

	id, ok := c.Selected()
	if !ok {
		if history.IsVideoLink(text) {
			return c.processVideo(ctx, text)
		}
		return Outcome{}, apperr.InvalidState(NoSelectionMessage)
	}
	return c.ask(ctx, id, text)
}

func (c *Controller) processVideo(ctx context.Context, link string) (Outcome, error) {
	res, err := c.gw.ProcessVideo(ctx, link)
	if err != nil {
		return Outcome{}, err
	}

	id := res.Data.ItemID
	msg := fmt.Sprintf("Done: video processed with id %s. Ask questions about this video now.", id)
	c.addItem(ctx, history.Item{
		ID:        id,
		URL:       history.StringPtr(link),
		Title:     link,
		CreatedAt: c.now(),
	}, msg)

	c.logger.Info("video processed", zap.String("id", id), zap.String("origin", string(res.Origin)))
	return Outcome{Origin: res.Origin, ItemID: id, Message: msg}, nil
}

func (c *Controller) ask(ctx context.Context, id, question string) (Outcome, error) {
	res, err := c.gw.RAGQuery(ctx, id, question)
	if err != nil {
		return Outcome{}, err
	}

	answer := res.Data.Answer
	c.convs.Append(ctx, id, conversation.UserTurn(question), conversation.AITurn(answer))
	if !c.history.Touch(ctx, id) {
		// deleted while the query was in flight: don't leave an orphan transcript
		c.convs.Delete(ctx, id)
		c.logger.Info("dropping answer for removed item", zap.String("id", id))
	}
	return Outcome{Origin: res.Origin, ItemID: id, Message: answer, Sources: res.Data.Sources}, nil
}

// UploadFile sends a document to the backend and selects it.
func (c *Controller) UploadFile(ctx context.Context, name string, content []byte) (Outcome, error) {
	name = filepath.Base(name)
	res, err := c.gw.UploadFile(ctx, content, name)
	if err != nil {
		return Outcome{}, err
	}

	id := res.Data.ItemID
	msg := fmt.Sprintf("File processed! ID: %s. You can ask questions about this document now.", id)
	c.addItem(ctx, history.Item{
		ID:        id,
		URL:       history.StringPtr(name),
		Title:     name,
		CreatedAt: c.now(),
	}, msg)

	c.logger.Info("file uploaded", zap.String("id", id), zap.String("name", name), zap.String("origin", string(res.Origin)))
	return Outcome{Origin: res.Origin, ItemID: id, Message: msg}, nil
}

// UploadPath reads a file from disk and uploads it.
func (c *Controller) UploadPath(ctx context.Context, path string) (Outcome, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Outcome{}, apperr.Validation(fmt.Sprintf("Could not read %s: %v", path, err))
	}
	return c.UploadFile(ctx, filepath.Base(path), content)
}

// NewChat starts an empty local chat and selects it.
func (c *Controller) NewChat(ctx context.Context) string {
	id := c.ids.Local()
	c.addItem(ctx, history.Item{
		ID:        id,
		Title:     NewChatTitle,
		CreatedAt: c.now(),
	}, NewChatMessage)
	return id
}

func (c *Controller) addItem(ctx context.Context, item history.Item, greeting string) {
	c.history.Upsert(ctx, item)
	c.convs.Replace(ctx, item.ID, []conversation.Turn{conversation.AITurn(greeting)})
	c.setSelected(item.ID)
}

// Delete removes an item and its transcript.
func (c *Controller) Delete(ctx context.Context, id string) {
	c.history.Remove(ctx, id)
	c.mu.Lock()
	if c.selected == id {
		c.selected = ""
	}
	c.mu.Unlock()
}

// ClearAll removes every item and transcript.
func (c *Controller) ClearAll(ctx context.Context) {
	c.history.Clear(ctx)
	c.Deselect()
}

// Rename sets an item's title.
func (c *Controller) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperr.Validation("Title cannot be empty.")
	}
	return c.history.Rename(ctx, id, title)
}

// TogglePin flips an item's pinned flag.
func (c *Controller) TogglePin(ctx context.Context, id string) (bool, error) {
	return c.history.TogglePin(ctx, id)
}

// ExportTranscript renders the stored transcript of the selection and
// names its file. Greeting defaults that were never stored are left out.
func (c *Controller) ExportTranscript(ctx context.Context) (string, []byte, error) {
	id, ok := c.Selected()
	if !ok {
		return "", nil, apperr.InvalidState(NoSelectionMessage)
	}

	item, found := c.history.Get(ctx, id)
	if !found {
		item = history.Item{ID: id}
	}
	text := export.Transcript(c.convs.Stored(ctx, id))
	return export.TranscriptFileName(item), []byte(text), nil
}

// ExportBundle renders the given items and their stored transcripts.
func (c *Controller) ExportBundle(ctx context.Context, itemIDs []string) (string, []byte, error) {
	if len(itemIDs) == 0 {
		return "", nil, apperr.Validation(NoChatsToExport)
	}

	entries := make([]export.Entry, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, found := c.history.Get(ctx, id)
		if !found {
			item = history.Item{ID: id}
		}
		entries = append(entries, export.Entry{Meta: item, Conv: c.convs.Stored(ctx, id)})
	}

	data, err := export.Bundle(entries)
	if err != nil {
		return "", nil, err
	}
	return export.BundleFileName(c.now()), data, nil
}

// Login authenticates and remembers the user.
func (c *Controller) Login(ctx context.Context, email, password string) (gateway.Origin, session.Identity, error) {
	res, err := c.gw.Login(ctx, email, password)
	if err != nil {
		return "", session.Identity{}, err
	}

	if res.Data.Token != "" {
		c.session.SetToken(ctx, res.Data.Token)
	}
	c.session.SetIdentity(ctx, res.Data.Identity)
	c.logger.Info("logged in", zap.String("user", res.Data.Identity.Username), zap.String("origin", string(res.Origin)))
	return res.Origin, res.Data.Identity, nil
}

// Signup registers the user and then logs them in.
func (c *Controller) Signup(ctx context.Context, email, password, confirmPassword string) (gateway.Origin, session.Identity, error) {
	res, err := c.gw.Signup(ctx, email, password, confirmPassword)
	if err != nil {
		return "", session.Identity{}, err
	}

	origin, identity, err := c.Login(ctx, email, password)
	if err != nil {
		return "", session.Identity{}, err
	}
	if res.IsFallback() {
		origin = gateway.Fallback
	}
	return origin, identity, nil
}

// Logout forgets the user and clears the selection.
func (c *Controller) Logout(ctx context.Context) {
	c.session.Clear(ctx)
	c.Deselect()
}

// CurrentUser returns the remembered user, if any.
func (c *Controller) CurrentUser(ctx context.Context) (session.Identity, bool) {
	return c.session.Load(ctx)
}

// DarkMode reports the saved theme.
func (c *Controller) DarkMode(ctx context.Context) bool {
	return c.session.DarkMode(ctx)
}

// ToggleDarkMode flips the saved theme and returns the new value.
func (c *Controller) ToggleDarkMode(ctx context.Context) bool {
	dark := !c.session.DarkMode(ctx)
	c.session.SetDarkMode(ctx, dark)
	return dark
}
