// Package command parses prefixed chat commands, checks authorization and
// routes to the progression workflows. User mistakes (bad arguments,
// missing objects, no permission) are answered inline and never mutate
// anything; platform failures abort the in-flight command and propagate to
// the event loop for logging.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/terra-clan/riddle-engine/internal/conversation"
	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/leaderboard"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/progression"
	"github.com/terra-clan/riddle-engine/internal/repair"
	"github.com/terra-clan/riddle-engine/internal/solve"
	"github.com/terra-clan/riddle-engine/internal/texts"
)

// SettingsPublisher republishes the settings message and arms its
// reaction toggle.
type SettingsPublisher interface {
	Publish(ctx context.Context) error
}

// Dispatcher routes chat commands.
type Dispatcher struct {
	prefix   string
	dir      directory.Service
	mgr      *progression.Manager
	board    *leaderboard.Renderer
	solver   *solve.Workflow
	fixer    *repair.Fixer
	waiter   *conversation.Waiter
	settings SettingsPublisher
	tx       texts.Texts
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	prefix string,
	dir directory.Service,
	mgr *progression.Manager,
	board *leaderboard.Renderer,
	solver *solve.Workflow,
	fixer *repair.Fixer,
	waiter *conversation.Waiter,
	settings SettingsPublisher,
	tx texts.Texts,
) *Dispatcher {
	return &Dispatcher{
		prefix:   prefix,
		dir:      dir,
		mgr:      mgr,
		board:    board,
		solver:   solver,
		fixer:    fixer,
		waiter:   waiter,
		settings: settings,
		tx:       tx,
	}
}

// Handle processes one inbound message. Non-command messages are ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg models.Message) error {
	if !strings.HasPrefix(msg.Content, d.prefix) {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(msg.Content, d.prefix))
	if len(fields) == 0 {
		return nil
	}
	verb, args := fields[0], fields[1:]

	slog.Debug("command received", "verb", verb, "author", msg.AuthorID, "channel", msg.ChannelID)

	switch verb {
	case "add":
		return d.requireAdmin(ctx, msg, func() error { return d.handleAdd(ctx, msg, args) })
	case "notify":
		return d.requireAdmin(ctx, msg, func() error { return d.handleNotify(ctx, msg, args) })
	case "delete":
		return d.requireAdmin(ctx, msg, func() error { return d.handleDelete(ctx, msg, args) })
	case "setup":
		return d.requireAdmin(ctx, msg, func() error { return d.settings.Publish(ctx) })
	case "fixall":
		return d.requireAdmin(ctx, msg, func() error { return d.handleFixAll(ctx, msg) })
	case "info":
		return d.handleInfo(ctx, msg)
	case "solve", d.solveAlias():
		return d.handleSolve(ctx, msg, args)
	case "fix":
		return d.handleFix(ctx, msg)
	case "score":
		return d.handleScore(ctx, msg)
	case "help":
		return d.handleHelp(ctx, msg)
	default:
		return d.replyText(ctx, msg, d.tx.UnknownCommand, map[string]string{"prefix": d.prefix})
	}
}

func (d *Dispatcher) solveAlias() string {
	if d.tx.SolveAlias == "" {
		return "solve"
	}
	return d.tx.SolveAlias
}

// requireAdmin runs fn only when the author holds administrator
// capability; otherwise it answers with a rejection and mutates nothing.
func (d *Dispatcher) requireAdmin(ctx context.Context, msg models.Message, fn func() error) error {
	member, err := d.dir.Member(ctx, msg.AuthorID)
	if err != nil {
		return fmt.Errorf("failed to resolve author: %w", err)
	}
	if !member.Admin {
		return d.replyText(ctx, msg, d.tx.Unauthorized, nil)
	}
	return fn()
}

func (d *Dispatcher) handleAdd(ctx context.Context, msg models.Message, args []string) error {
	if len(args) < 2 || (args[0] != "category" && args[0] != "level") {
		return d.reply(ctx, msg, "usage: "+d.prefix+"add category|level <category>")
	}

	if args[0] == "category" {
		// Labels may contain spaces; everything after the verb is the label.
		label := strings.Join(args[1:], " ")
		cat, err := d.mgr.CreateCategory(ctx, label)
		if err != nil {
			return d.replyIfUserError(ctx, msg, err)
		}
		if err := d.board.Refresh(ctx, cat); err != nil {
			return err
		}
		return d.reply(ctx, msg, "Category has been created!")
	}

	catID, ok := parseID(args[1])
	if !ok {
		return d.reply(ctx, msg, "Category ID has to be numeric!")
	}

	cat, lvl, err := d.mgr.CreateLevel(ctx, catID)
	if err != nil {
		return d.replyIfUserError(ctx, msg, err)
	}
	if err := d.reply(ctx, msg, fmt.Sprintf(
		"Level %d has been created.\nLevel channel: %s\nSolution channel: %s\nRole: %s",
		lvl.Number,
		models.ChannelMention(lvl.Channel.ID),
		models.ChannelMention(lvl.Solution.ID),
		models.RoleMention(lvl.Role.ID),
	)); err != nil {
		return err
	}

	// Suspend here until the author supplies the riddle text.
	if err := d.replyText(ctx, msg, d.tx.RiddlePrompt, nil); err != nil {
		return err
	}
	riddle, err := d.waiter.Await(ctx, msg.ChannelID, msg.AuthorID)
	if err != nil {
		if errors.Is(err, conversation.ErrExpired) {
			return d.replyText(ctx, msg, d.tx.WaitExpired, nil)
		}
		return nil
	}
	if err := d.mgr.PostRiddle(ctx, cat, lvl, riddle.Content); err != nil {
		return err
	}

	if err := d.replyText(ctx, msg, d.tx.RiddleCreated, nil); err != nil {
		return err
	}
	if err := d.replyText(ctx, msg, d.tx.SolutionHint, map[string]string{
		"channel": models.ChannelMention(lvl.Solution.ID),
	}); err != nil {
		return err
	}
	return d.replyText(ctx, msg, d.tx.NotifyHint, map[string]string{
		"prefix":   d.prefix,
		"category": strconv.Itoa(cat.ID),
		"level":    strconv.Itoa(lvl.Number),
	})
}

func (d *Dispatcher) handleNotify(ctx context.Context, msg models.Message, args []string) error {
	if len(args) != 2 {
		return d.reply(ctx, msg, "usage: "+d.prefix+"notify <category-id> <level-id>")
	}
	catID, ok1 := parseID(args[0])
	levelN, ok2 := parseID(args[1])
	if !ok1 || !ok2 {
		return d.reply(ctx, msg, "Category and level ID have to be numeric!")
	}

	notified, err := d.mgr.Notify(ctx, catID, levelN)
	if err != nil {
		return d.replyIfUserError(ctx, msg, err)
	}

	cat, err := d.mgr.Index().Category(ctx, catID)
	if err != nil {
		return err
	}
	if err := d.board.Refresh(ctx, cat); err != nil {
		return err
	}

	plural := "s have"
	if notified == 1 {
		plural = " has"
	}
	return d.reply(ctx, msg, fmt.Sprintf("%d member%s been notified about the new level.", notified, plural))
}

func (d *Dispatcher) handleDelete(ctx context.Context, msg models.Message, args []string) error {
	usage := "usage: " + d.prefix + "delete category <category-id>\n" +
		"   or: " + d.prefix + "delete level[s] <category-id> <level-id> [<level-id>]"

	switch {
	case len(args) == 2 && args[0] == "category":
		catID, ok := parseID(args[1])
		if !ok {
			return d.reply(ctx, msg, "Category ID has to be numeric!")
		}
		if err := d.mgr.DeleteCategory(ctx, catID); err != nil {
			return d.replyIfUserError(ctx, msg, err)
		}
		return d.reply(ctx, msg, "Category has been deleted")

	case (len(args) == 3 || len(args) == 4) && (args[0] == "level" || args[0] == "levels"):
		catID, ok := parseID(args[1])
		if !ok {
			return d.reply(ctx, msg, "Category ID has to be numeric!")
		}
		from, ok := parseID(args[2])
		if !ok {
			return d.reply(ctx, msg, "Level ID has to be numeric!")
		}
		to := from
		if len(args) == 4 {
			to, ok = parseID(args[3])
			if !ok {
				return d.reply(ctx, msg, "Level ID has to be numeric!")
			}
		}

		deleted, err := d.mgr.DeleteLevels(ctx, catID, from, to)
		if err != nil {
			if errors.Is(err, progression.ErrInvalidRange) {
				return d.reply(ctx, msg, usage)
			}
			return d.replyIfUserError(ctx, msg, err)
		}

		existed := make(map[int]bool, len(deleted))
		for _, n := range deleted {
			existed[n] = true
		}
		for n := from; n <= to; n++ {
			line := fmt.Sprintf("Level %d does not exist", n)
			if existed[n] {
				line = fmt.Sprintf("Level %d has been deleted", n)
			}
			if err := d.reply(ctx, msg, line); err != nil {
				return err
			}
		}

		cat, err := d.mgr.Index().Category(ctx, catID)
		if err == nil {
			if err := d.board.Refresh(ctx, cat); err != nil {
				return err
			}
		}
		return d.reply(ctx, msg, "Done")

	default:
		return d.reply(ctx, msg, usage)
	}
}

func (d *Dispatcher) handleInfo(ctx context.Context, msg models.Message) error {
	infos, err := d.mgr.Infos(ctx)
	if err != nil {
		return d.replyIfUserError(ctx, msg, err)
	}
	embed := models.Embed{Title: "Info"}
	for _, info := range infos {
		embed.Fields = append(embed.Fields, models.EmbedField{
			Name:  fmt.Sprintf("[%d] %s", info.ID, info.Label),
			Value: fmt.Sprintf("%d Levels", info.LevelCount),
		})
	}
	_, err = d.dir.SendEmbed(ctx, msg.ChannelID, embed)
	return err
}

func (d *Dispatcher) handleSolve(ctx context.Context, msg models.Message, args []string) error {
	if !msg.Direct {
		// Answers must not leak into public channels.
		if err := d.dir.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil && !errors.Is(err, directory.ErrNotFound) {
			return err
		}
		return d.replyText(ctx, msg, d.tx.SolveInPrivate, map[string]string{
			"user": models.MemberMention(msg.AuthorID),
		})
	}

	if len(args) != 1 {
		return d.reply(ctx, msg, "usage: "+d.prefix+"solve <category-id>")
	}
	catID, ok := parseID(args[0])
	if !ok {
		return d.reply(ctx, msg, "Category ID has to be numeric!")
	}

	_, err := d.solver.Run(ctx, msg, catID)
	return err
}

func (d *Dispatcher) handleFix(ctx context.Context, msg models.Message) error {
	fixed, err := d.fixer.FixMember(ctx, msg.AuthorID)
	if err != nil {
		return d.replyIfUserError(ctx, msg, err)
	}
	if fixed == 0 {
		return d.reply(ctx, msg, "Your roles are fine, nothing to fix.")
	}
	return d.reply(ctx, msg, fmt.Sprintf("Fixed your roles in %d categories.", fixed))
}

func (d *Dispatcher) handleFixAll(ctx context.Context, msg models.Message) error {
	fixed, err := d.fixer.FixAll(ctx)
	if err != nil {
		return d.replyIfUserError(ctx, msg, err)
	}
	return d.reply(ctx, msg, fmt.Sprintf("Applied %d fixes.", fixed))
}

func (d *Dispatcher) handleScore(ctx context.Context, msg models.Message) error {
	lines, total, err := d.mgr.MemberScore(ctx, msg.AuthorID)
	if err != nil {
		return d.replyIfUserError(ctx, msg, err)
	}
	embed := models.Embed{Title: "Score"}
	for _, line := range lines {
		embed.Fields = append(embed.Fields, models.EmbedField{
			Name:  line.Category.Label,
			Value: fmt.Sprintf("%d / %d", line.Score, line.Category.LevelCount),
		})
	}
	embed.Footer = fmt.Sprintf("Total: %d", total)
	_, err = d.dir.SendEmbed(ctx, msg.ChannelID, embed)
	return err
}

func (d *Dispatcher) handleHelp(ctx context.Context, msg models.Message) error {
	member, err := d.dir.Member(ctx, msg.AuthorID)
	if err != nil {
		return fmt.Errorf("failed to resolve author: %w", err)
	}
	vars := map[string]string{"prefix": d.prefix}
	body := texts.Render(d.tx.Help, vars)
	if member.Admin {
		body += "\n\n" + texts.Render(d.tx.HelpAdmin, vars)
	}
	return d.reply(ctx, msg, body)
}

// replyIfUserError answers not-found and ambiguous-match conditions inline
// and swallows them; anything else propagates.
func (d *Dispatcher) replyIfUserError(ctx context.Context, msg models.Message, err error) error {
	switch {
	case errors.Is(err, directory.ErrNotFound), errors.Is(err, progression.ErrLevelNotFound):
		return d.reply(ctx, msg, "Category or level does not exist!")
	case errors.Is(err, directory.ErrAmbiguous):
		return d.reply(ctx, msg, "Directory state is ambiguous: "+err.Error())
	default:
		return err
	}
}

func (d *Dispatcher) reply(ctx context.Context, msg models.Message, content string) error {
	_, err := d.dir.Send(ctx, msg.ChannelID, content)
	return err
}

func (d *Dispatcher) replyText(ctx context.Context, msg models.Message, tmpl string, vars map[string]string) error {
	return d.reply(ctx, msg, texts.Render(tmpl, vars))
}

func parseID(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
