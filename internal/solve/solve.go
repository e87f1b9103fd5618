// Package solve implements the answer-submission state machine. A run is
// driven by one member in their private channel: authenticate the current
// level, solicit an answer, evaluate it against the stored solution and
// transition the member's roles.
package solve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/terra-clan/riddle-engine/internal/conversation"
	"github.com/terra-clan/riddle-engine/internal/directory"
	"github.com/terra-clan/riddle-engine/internal/leaderboard"
	"github.com/terra-clan/riddle-engine/internal/models"
	"github.com/terra-clan/riddle-engine/internal/progression"
	"github.com/terra-clan/riddle-engine/internal/texts"
)

// State names the stations of a solve run.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingAnswer State = "awaiting_answer"
	StateEvaluating     State = "evaluating"
	StateAdvanced       State = "advanced"
	StateCompleted      State = "completed_category"
	StateRejected       State = "rejected"
	// StateAborted covers runs that ended without an evaluation: unknown
	// category, already-completed member, repair-on-demand, expired wait.
	StateAborted State = "aborted"
)

// Workflow runs solve conversations.
type Workflow struct {
	dir    directory.Service
	mgr    *progression.Manager
	waiter *conversation.Waiter
	board  *leaderboard.Renderer
	tx     texts.Texts

	// delay paces the evaluation step. Pure UX; zero in tests.
	delay time.Duration
}

// New creates a Workflow.
func New(dir directory.Service, mgr *progression.Manager, waiter *conversation.Waiter, board *leaderboard.Renderer, tx texts.Texts, delay time.Duration) *Workflow {
	return &Workflow{dir: dir, mgr: mgr, waiter: waiter, board: board, tx: tx, delay: delay}
}

// Run executes one solve conversation. msg is the private command message
// that started it; catID the category the member wants to solve. User
// mistakes are reported in chat and end the run without error; only
// platform failures propagate.
func (w *Workflow) Run(ctx context.Context, msg models.Message, catID int) (State, error) {
	cat, err := w.mgr.Index().Category(ctx, catID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return StateAborted, w.reply(ctx, msg, w.tx.UnknownCategory, nil)
		}
		return StateAborted, err
	}
	if cat.CompletionRole == nil {
		return StateAborted, w.reply(ctx, msg, w.tx.UnknownCategory, nil)
	}

	member, err := w.dir.Member(ctx, msg.AuthorID)
	if err != nil {
		return StateAborted, err
	}
	prog, err := w.mgr.Progress(ctx, cat, member)
	if err != nil {
		return StateAborted, err
	}

	switch prog.State {
	case models.ProgressCompleted:
		return StateAborted, w.reply(ctx, msg, w.tx.AlreadyMaster, nil)
	case models.ProgressUninitialized:
		// Repair on demand: place the member onto a valid standing and
		// stop; this run never evaluates an answer.
		lvl, completed, err := w.mgr.InitMember(ctx, cat, member.ID)
		if err != nil {
			return StateAborted, err
		}
		if completed {
			return StateAborted, w.reply(ctx, msg, w.tx.AlreadyMaster, nil)
		}
		return StateAborted, w.reply(ctx, msg, w.tx.RoleRepaired, map[string]string{
			"channel": levelRef(lvl),
		})
	}

	level := prog.Level
	slog.Debug("solve started", "member", member.ID, "category", cat.ID, "level", level)

	if err := w.reply(ctx, msg, w.tx.AnswerPrompt, nil); err != nil {
		return StateAwaitingAnswer, err
	}
	answer, err := w.waiter.Await(ctx, msg.ChannelID, msg.AuthorID)
	if err != nil {
		if errors.Is(err, conversation.ErrExpired) {
			return StateAborted, w.reply(ctx, msg, w.tx.WaitExpired, nil)
		}
		// Superseded or canceled waits end silently.
		return StateAborted, nil
	}

	if err := w.reply(ctx, msg, w.tx.Checking, nil); err != nil {
		return StateEvaluating, err
	}
	if err := w.pace(ctx); err != nil {
		return StateEvaluating, err
	}

	solution, err := w.mgr.SolutionText(ctx, cat, level)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return StateEvaluating, err
	}
	if err != nil || !progression.CheckAnswer(solution, answer.Content) {
		slog.Info("answer rejected", "member", member.ID, "category", cat.ID, "level", level)
		return StateRejected, w.reply(ctx, msg, w.tx.WrongAnswer, map[string]string{
			"level": strconv.Itoa(level),
		})
	}

	next, completed, err := w.mgr.Advance(ctx, cat, member.ID, level)
	if err != nil {
		return StateEvaluating, err
	}
	if err := w.board.Refresh(ctx, cat); err != nil {
		slog.Error("failed to refresh leaderboard after solve", "error", err, "category", cat.ID)
	}

	if completed {
		slog.Info("category completed", "member", member.ID, "category", cat.ID)
		return StateCompleted, w.reply(ctx, msg, w.tx.CorrectFinished, nil)
	}
	slog.Info("member advanced", "member", member.ID, "category", cat.ID, "level", next.Number)
	return StateAdvanced, w.reply(ctx, msg, w.tx.CorrectNext, map[string]string{
		"channel": levelRef(next),
	})
}

// levelRef names a level's discussion channel. The channel can be missing
// when an operator deleted it by hand while the gating role survived; the
// level number stands in until the repair routine catches up.
func levelRef(lvl models.Level) string {
	if lvl.Channel != nil {
		return models.ChannelMention(lvl.Channel.ID)
	}
	return fmt.Sprintf("level %d", lvl.Number)
}

func (w *Workflow) reply(ctx context.Context, msg models.Message, tmpl string, vars map[string]string) error {
	_, err := w.dir.Send(ctx, msg.ChannelID, texts.Render(tmpl, vars))
	return err
}

func (w *Workflow) pace(ctx context.Context) error {
	if w.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(w.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
