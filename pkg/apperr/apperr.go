// Package apperr defines the error taxonomy that crosses the command
// surface boundary.
//
// Everything below pkg/command (engine, remote client, account pool,
// library store) returns plain wrapped errors built with fmt.Errorf("...:
// %w", err). Only the command surface converts those chains into a
// CommandError, the Go shape of the {err_title, err_message} contract.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// CommandError is returned to callers of the command surface.
type CommandError struct {
	Title   string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Message)
}

// Wrap builds a CommandError from any error, rendering its full chain into
// Message.
func Wrap(title string, err error) *CommandError {
	return &CommandError{
		Title:   title,
		Message: Chain(err),
	}
}

// Chain renders an error and everything errors.Unwrap reaches from it, one
// line per level, numbered from 0.
//
// Errors built with Frame carry their own context message separately from
// their cause, so each line shows only that frame's contribution. A plain
// fmt.Errorf("...: %w", err) still works but degenerates to one line, since
// its Error() already bakes the whole chain into a single string.
func Chain(err error) string {
	var b strings.Builder
	for i := 0; err != nil; i++ {
		if f, ok := err.(*frame); ok { //nolint:errorlint // frame is ours, a plain assertion is enough
			fmt.Fprintf(&b, "%d: %s\n", i, f.msg)
			err = f.cause
			continue
		}
		fmt.Fprintf(&b, "%d: %s\n", i, err.Error())
		break
	}
	return strings.TrimRight(b.String(), "\n")
}

// Frame wraps err with a context message, keeping the message and the cause
// addressable separately so Chain can render one line per frame instead of
// one ever-growing string.
func Frame(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &frame{msg: msg, cause: err}
}

type frame struct {
	msg   string
	cause error
}

func (f *frame) Error() string { return fmt.Sprintf("%s: %s", f.msg, f.cause) }
func (f *frame) Unwrap() error { return f.cause }

// RiskControlOp names the remote operation an HTTP 210 response was seen
// against, per spec §4.1/§7.
type RiskControlOp string

const (
	OpRegister        RiskControlOp = "register"
	OpLogin           RiskControlOp = "login"
	OpProfile         RiskControlOp = "profile"
	OpSearch          RiskControlOp = "search"
	OpGetComic        RiskControlOp = "get_comic"
	OpGetChapter      RiskControlOp = "get_chapter"
	OpGetGroupChapters RiskControlOp = "get_group_chapters"
	OpGetFavorite     RiskControlOp = "get_favorite"
)

// RiskControlError is the tagged "risk control" error variant spec §4.1/§7
// requires: an HTTP 210 response, tagged with the operation that saw it.
type RiskControlError struct {
	Op   RiskControlOp
	Body string
}

func (e *RiskControlError) Error() string {
	return fmt.Sprintf("risk control triggered on %s: %s", e.Op, e.Body)
}

// AsRiskControl extracts a *RiskControlError from err's chain, if present.
func AsRiskControl(err error) (*RiskControlError, bool) {
	var rc *RiskControlError
	if errors.As(err, &rc) {
		return rc, true
	}
	return nil, false
}

// AuthError is returned when the primary token is rejected (HTTP 401 on
// profile), per spec §4.1.
type AuthError struct {
	Body string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("stale token: %s", e.Body)
}

// TaskLifecycleError covers duplicate/missing download task errors, spec §4.4.
type TaskLifecycleError struct {
	ChapterUUID string
	Reason      string
}

func (e *TaskLifecycleError) Error() string {
	return fmt.Sprintf("task %s: %s", e.ChapterUUID, e.Reason)
}
