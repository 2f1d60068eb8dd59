package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"go.uber.org/zap"

	"summarai/internal/apperr"
	"summarai/internal/config"
	"summarai/internal/controller"
	"summarai/internal/export"
	"summarai/internal/gateway"
	"summarai/internal/session"
	"summarai/internal/terminal"
	"summarai/internal/ui"
)

// errExit ends the loop normally.
var errExit = errors.New("exit")

type repl struct {
	cfg     *config.Config
	ctl     *controller.Controller
	input   *terminal.Input
	display *ui.Display
	spinner *terminal.Spinner
	logger  *zap.Logger
}

// run alternates between the auth view and the workspace until exit.
func (r *repl) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		user, ok := r.ctl.CurrentUser(ctx)
		var err error
		if !ok {
			err = r.authView(ctx)
		} else {
			err = r.workspace(ctx, user)
		}
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (r *repl) authView(ctx context.Context) error {
	r.display.PrintAuthHelp()
	for {
		line, err := r.input.Prompt("\n> ")
		if err != nil {
			return err
		}

		switch cmd, _ := ui.ParseCommand(line); cmd.Name {
		case "/exit", "/quit":
			return errExit
		case "/login":
			if r.login(ctx) {
				return nil
			}
		case "/signup":
			if r.signup(ctx) {
				return nil
			}
		case "":
			if line != "" {
				r.display.PrintWarning("Please /login or /signup first.")
			}
		default:
			r.display.PrintWarning("Unknown command " + cmd.Name)
		}
	}
}

func (r *repl) login(ctx context.Context) bool {
	email, err := r.input.Prompt("Email: ")
	if err != nil {
		return false
	}
	password, err := r.input.Password("Password: ")
	if err != nil {
		return false
	}

	r.spinner.Start("Signing in")
	origin, identity, err := r.ctl.Login(ctx, email, password)
	r.spinner.Stop()
	if err != nil {
		r.report(err)
		return false
	}
	r.display.PrintSuccess("Welcome, "+identity.Username+"!", origin)
	return true
}

func (r *repl) signup(ctx context.Context) bool {
	email, err := r.input.Prompt("Email: ")
	if err != nil {
		return false
	}
	password, err := r.input.Password("Password: ")
	if err != nil {
		return false
	}
	confirm, err := r.input.Password("Confirm password: ")
	if err != nil {
		return false
	}

	r.spinner.Start("Creating account")
	origin, identity, err := r.ctl.Signup(ctx, email, password, confirm)
	r.spinner.Stop()
	if err != nil {
		r.report(err)
		return false
	}
	r.display.PrintSuccess("Account created. Welcome, "+identity.Username+"!", origin)
	return true
}

func (r *repl) workspace(ctx context.Context, user session.Identity) error {
	r.display.PrintInfo("Signed in as " + user.Email + ". Type /help for commands.")
	for {
		selected, _ := r.ctl.Selected()
		r.display.PrintPrompt(user, selected)
		line, err := r.input.ReadLine()
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		cmd, isCommand := ui.ParseCommand(line)
		if !isCommand {
			r.submit(ctx, line)
			continue
		}

		switch cmd.Name {
		case "/exit", "/quit":
			return errExit
		case "/logout":
			r.ctl.Logout(ctx)
			r.display.PrintInfo("Signed out.")
			return nil
		case "/help":
			r.display.PrintHelp()
		case "/new":
			r.ctl.NewChat(ctx)
			r.display.PrintConversation(r.ctl.Conversation(ctx))
		case "/upload":
			r.upload(ctx, cmd)
		case "/list":
			r.display.PrintHistory(r.ctl.History(ctx), selected)
		case "/select":
			r.withRef(ctx, cmd, func(id string) error {
				if err := r.ctl.Select(ctx, id); err != nil {
					return err
				}
				r.display.PrintConversation(r.ctl.Conversation(ctx))
				return nil
			})
		case "/deselect":
			r.ctl.Deselect()
		case "/show":
			r.display.PrintConversation(r.ctl.Conversation(ctx))
		case "/rename":
			if cmd.Rest == "" {
				r.display.PrintWarning("Usage: /rename <n|id> <title>")
				continue
			}
			r.withRef(ctx, cmd, func(id string) error {
				if err := r.ctl.Rename(ctx, id, cmd.Rest); err != nil {
					return err
				}
				r.display.PrintSuccess("Renamed to "+cmd.Rest, gateway.Real)
				return nil
			})
		case "/pin":
			r.withRef(ctx, cmd, func(id string) error {
				pinned, err := r.ctl.TogglePin(ctx, id)
				if err != nil {
					return err
				}
				if pinned {
					r.display.PrintSuccess("Pinned", gateway.Real)
				} else {
					r.display.PrintSuccess("Unpinned", gateway.Real)
				}
				return nil
			})
		case "/delete":
			r.withRef(ctx, cmd, func(id string) error {
				r.ctl.Delete(ctx, id)
				r.display.PrintSuccess("Deleted "+id, gateway.Real)
				return nil
			})
		case "/clear":
			r.clearAll(ctx)
		case "/export":
			r.exportTranscript(ctx)
		case "/export-selected":
			r.exportBundle(ctx, cmd.Args)
		case "/dark":
			dark := r.ctl.ToggleDarkMode(ctx)
			r.display.SetDark(dark)
			if dark {
				r.display.PrintInfo("Dark mode on")
			} else {
				r.display.PrintInfo("Dark mode off")
			}
		default:
			r.display.PrintWarning("Unknown command " + cmd.Name + ". Type /help.")
		}
	}
}

func (r *repl) submit(ctx context.Context, text string) {
	_, hasSelection := r.ctl.Selected()
	if hasSelection {
		r.spinner.Start("Thinking")
	} else {
		r.spinner.Start("Processing video")
	}
	out, err := r.ctl.Submit(ctx, text)
	r.spinner.Stop()
	if err != nil {
		r.report(err)
		return
	}

	if hasSelection {
		r.display.PrintAnswer(out.Message, out.Sources, out.Origin)
	} else {
		r.display.PrintSuccess(out.Message, out.Origin)
	}
}

func (r *repl) upload(ctx context.Context, cmd ui.Command) {
	if len(cmd.Args) == 0 {
		r.display.PrintWarning("Usage: /upload <path|@name>")
		return
	}

	wd, _ := os.Getwd()
	path, candidates := terminal.ExpandFileRef(wd, cmd.Raw)
	if len(candidates) > 0 {
		r.display.PrintFileSuggestions(path, candidates)
		return
	}

	r.spinner.Start("Uploading")
	out, err := r.ctl.UploadPath(ctx, path)
	r.spinner.Stop()
	if err != nil {
		r.report(err)
		return
	}
	r.display.PrintSuccess(out.Message, out.Origin)
}

func (r *repl) clearAll(ctx context.Context) {
	answer, err := r.input.Prompt("Delete all history and chats? [y/N] ")
	if err != nil || !strings.EqualFold(answer, "y") {
		return
	}
	r.ctl.ClearAll(ctx)
	r.display.PrintSuccess("History cleared", gateway.Real)
}

func (r *repl) exportTranscript(ctx context.Context) {
	name, data, err := r.ctl.ExportTranscript(ctx)
	if err != nil {
		r.report(err)
		return
	}
	r.write(name, data)
}

func (r *repl) exportBundle(ctx context.Context, refs []string) {
	items := r.ctl.History(ctx)
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, err := ui.ResolveRef(ref, items)
		if err != nil {
			r.report(err)
			return
		}
		ids = append(ids, id)
	}

	name, data, err := r.ctl.ExportBundle(ctx, ids)
	if err != nil {
		r.report(err)
		return
	}
	r.write(name, data)
}

func (r *repl) write(name string, data []byte) {
	path, err := export.WriteFile(r.cfg.ExportDir, name, data)
	if err != nil {
		r.logger.Error("export failed", zap.String("name", name), zap.Error(err))
		r.display.PrintError("Export failed: " + err.Error())
		return
	}
	r.display.PrintSuccess("Saved "+path, gateway.Real)
}

func (r *repl) withRef(ctx context.Context, cmd ui.Command, fn func(id string) error) {
	if len(cmd.Args) == 0 {
		r.display.PrintWarning("Usage: " + cmd.Name + " <n|id>")
		return
	}
	id, err := ui.ResolveRef(cmd.Args[0], r.ctl.History(ctx))
	if err == nil {
		err = fn(id)
	}
	if err != nil {
		r.report(err)
	}
}

// report prints user-facing errors and logs the rest.
func (r *repl) report(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		return
	case apperr.Is(err, apperr.KindValidation), apperr.Is(err, apperr.KindInvalidState):
		r.display.PrintWarning(apperr.UserMessage(err))
	default:
		r.logger.Error("operation failed", zap.Error(err))
		r.display.PrintError(apperr.UserMessage(err))
	}
}
