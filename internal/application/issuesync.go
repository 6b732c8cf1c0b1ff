package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
)

// genericFailureMessage is shown for remote and store failures. Details go
// to the log only.
const genericFailureMessage = "Something went wrong while talking to GitHub, please try again later"

// SyncConfig holds the settings the engine checks every command against.
type SyncConfig struct {
	TrackedChannelID uint64
	AllowedRoleIDs   []uint64
}

// IssueSyncEngine runs the create, update and comment pipelines. Each
// pipeline checks its preconditions in a fixed order and stops at the first
// failure without side effects.
type IssueSyncEngine struct {
	cfg     SyncConfig
	creds   CredentialSource
	tracker driven.IssueTracker
	store   *MappingStore
	chat    driven.ChatGateway
	logger  *slog.Logger

	inflight sync.WaitGroup
}

// NewIssueSyncEngine creates an IssueSyncEngine with all required dependencies.
func NewIssueSyncEngine(
	cfg SyncConfig,
	creds CredentialSource,
	tracker driven.IssueTracker,
	store *MappingStore,
	chat driven.ChatGateway,
	logger *slog.Logger,
) *IssueSyncEngine {
	return &IssueSyncEngine{
		cfg:     cfg,
		creds:   creds,
		tracker: tracker,
		store:   store,
		chat:    chat,
		logger:  logger,
	}
}

// Dispatch runs the command on its own goroutine and returns immediately.
// Every failure, including a panic, ends as a private reply to the user.
// Cancelling ctx does not abort a running command, so a created issue is
// always recorded; use Wait to bound shutdown.
func (e *IssueSyncEngine) Dispatch(ctx context.Context, req model.CommandRequest, responder driven.Responder) {
	ctx = context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer func() {
			if v := recover(); v != nil {
				logger := e.commandLogger(req)
				logger.Error("command panicked", "panic", v)
				e.respond(ctx, logger, responder, genericFailureMessage, true)
			}
		}()

		_ = e.Execute(ctx, req, responder)
	}()
}

// Wait blocks until every dispatched command has finished or ctx is done.
func (e *IssueSyncEngine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute runs one command synchronously and replies to the user. The
// returned error is already logged and answered; callers only inspect it.
func (e *IssueSyncEngine) Execute(ctx context.Context, req model.CommandRequest, responder driven.Responder) error {
	logger := e.commandLogger(req)

	var err error
	switch req.Action {
	case model.ActionCreate:
		err = e.createIssue(ctx, logger, req, responder)
	case model.ActionUpdate:
		err = e.updateIssue(ctx, logger, req, responder)
	case model.ActionComment:
		err = e.addComment(ctx, logger, req, responder)
	default:
		err = fmt.Errorf("unknown action %q", req.Action)
	}

	if err == nil {
		return nil
	}

	var rejection *PreconditionError
	if errors.As(err, &rejection) {
		logger.Info("command rejected", "reason", rejection.Reason)
		e.respond(ctx, logger, responder, rejection.Message, true)
		return err
	}

	logger.Error("command failed", "error", err)
	e.respond(ctx, logger, responder, genericFailureMessage, true)
	return err
}

// createIssue opens a tracker issue for the thread and records the mapping.
func (e *IssueSyncEngine) createIssue(ctx context.Context, logger *slog.Logger, req model.CommandRequest, responder driven.Responder) error {
	if err := e.checkCommon(req); err != nil {
		return err
	}
	if !req.IsOpeningMessage() {
		return reject(RejectNotFirstMessage, "Failed, you can only create an issue from the first message in a post")
	}
	if _, exists := e.store.Lookup(req.Thread.ID); exists {
		return reject(RejectAlreadyExists, "Failed, issue already exists")
	}

	body := BuildIssueBody(req)

	cred, err := e.creds.Credential()
	if err != nil {
		return fmt.Errorf("obtaining installation credential: %w", err)
	}

	issue, err := e.tracker.CreateIssue(ctx, cred, req.Thread.Name, body)
	if err != nil {
		return fmt.Errorf("%w: creating issue: %w", ErrRemoteFailure, err)
	}

	// A concurrent create for the same thread won the insert. The issue just
	// created cannot be attached to the thread and is left for manual cleanup.
	if !e.store.TryInsert(req.Thread.ID, issue.Number) {
		logger.Warn("issue created for an already mapped thread, new issue is orphaned",
			"orphaned_issue_number", issue.Number,
			"issue_url", issue.URL,
		)
		return reject(RejectAlreadyExists, "Failed, issue already exists")
	}

	if err := e.store.Persist(ctx); err != nil {
		return fmt.Errorf("persisting mapping for issue #%d: %w", issue.Number, err)
	}

	logger.Info("issue created", "title", req.Thread.Name, "issue_number", issue.Number, "issue_url", issue.URL)

	confirmation := fmt.Sprintf("Created Issue: %s\n%s", req.Thread.Name, issue.URL)
	if err := e.chat.PostThreadMessage(ctx, req.Thread.ID, confirmation); err != nil {
		logger.Warn("posting issue confirmation failed", "error", err)
	}

	e.respond(ctx, logger, responder, "Done", true)
	return nil
}

// updateIssue rewrites the mapped issue's title and body from the thread.
func (e *IssueSyncEngine) updateIssue(ctx context.Context, logger *slog.Logger, req model.CommandRequest, responder driven.Responder) error {
	if err := e.checkCommon(req); err != nil {
		return err
	}
	if !req.IsOpeningMessage() {
		return reject(RejectNotFirstMessage, "Failed, you can only update an issue from the first message in a post")
	}

	number, ok := e.store.Lookup(req.Thread.ID)
	if !ok {
		return reject(RejectNoIssue, "Issue update failed, could not get issue for this post")
	}

	cred, err := e.creds.Credential()
	if err != nil {
		return fmt.Errorf("obtaining installation credential: %w", err)
	}

	issue, err := e.tracker.GetIssue(ctx, cred, number)
	if err != nil {
		return fmt.Errorf("%w: fetching issue #%d: %w", ErrRemoteFailure, number, err)
	}

	if err := e.tracker.UpdateIssue(ctx, cred, number, req.Thread.Name, BuildIssueBody(req)); err != nil {
		return fmt.Errorf("%w: updating issue #%d: %w", ErrRemoteFailure, number, err)
	}

	logger.Info("issue updated", "title", req.Thread.Name, "issue_number", number, "issue_url", issue.URL)
	e.respond(ctx, logger, responder, "Issue updated", false)
	return nil
}

// addComment appends the targeted reply to the mapped issue as a comment.
func (e *IssueSyncEngine) addComment(ctx context.Context, logger *slog.Logger, req model.CommandRequest, responder driven.Responder) error {
	if err := e.checkCommon(req); err != nil {
		return err
	}
	if req.IsOpeningMessage() {
		return reject(RejectFirstMessage, "Failed, you can only add a comment that is not the first message in a post")
	}

	number, ok := e.store.Lookup(req.Thread.ID)
	if !ok {
		return reject(RejectNoIssue, "Adding comment failed, could not get issue for this post")
	}

	cred, err := e.creds.Credential()
	if err != nil {
		return fmt.Errorf("obtaining installation credential: %w", err)
	}

	issue, err := e.tracker.GetIssue(ctx, cred, number)
	if err != nil {
		return fmt.Errorf("%w: fetching issue #%d: %w", ErrRemoteFailure, number, err)
	}

	if err := e.tracker.CreateComment(ctx, cred, number, BuildCommentBody(req)); err != nil {
		return fmt.Errorf("%w: commenting on issue #%d: %w", ErrRemoteFailure, number, err)
	}

	logger.Info("comment added to issue", "title", req.Thread.Name, "issue_number", number, "issue_url", issue.URL)
	e.respond(ctx, logger, responder, "Added comment to issue", false)
	return nil
}

// checkCommon runs the channel, authorization and channel-kind checks shared
// by every action, in that order.
func (e *IssueSyncEngine) checkCommon(req model.CommandRequest) error {
	if req.Thread.ParentID == 0 || req.Thread.ParentID != e.cfg.TrackedChannelID {
		verb := "update"
		if req.Action == model.ActionCreate {
			verb = "create"
		}
		return reject(RejectWrongChannel, fmt.Sprintf("You can only %s bug reports from <#%d>", verb, e.cfg.TrackedChannelID))
	}

	if !IsAuthorized(req.User.IsAdmin, req.User.RoleIDs, e.cfg.AllowedRoleIDs) {
		return reject(RejectNotAuthorized, "You are not allowed to do that")
	}

	if req.Thread.ParentKind != model.ChannelKindForum {
		return reject(RejectWrongChannelKind, "Failed, parent channel is not a forum channel")
	}

	return nil
}

func (e *IssueSyncEngine) respond(ctx context.Context, logger *slog.Logger, responder driven.Responder, content string, ephemeral bool) {
	if err := responder.Respond(ctx, content, ephemeral); err != nil {
		logger.Error("replying to user failed", "error", err)
	}
}

func (e *IssueSyncEngine) commandLogger(req model.CommandRequest) *slog.Logger {
	return e.logger.With(
		"command_id", req.ID,
		"action", string(req.Action),
		"thread_id", req.Thread.ID,
		"user", req.User.Name,
	)
}

func reject(reason Rejection, message string) error {
	return &PreconditionError{Reason: reason, Message: message}
}
