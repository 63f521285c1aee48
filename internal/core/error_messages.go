package core

// # Error Codes Reference
//
// User-facing messages carry a code that support staff can look up here.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Unsupported extension: only .csv and .txt files are accepted
//	FILE002 - Empty file: the file has no lines
//	FILE003 - Malformed record: a line has unbalanced quoting
//	FILE004 - File too large: the file exceeds the configured size limit
//	FILE005 - Already admitted: the file is already in the merge list
//	FILE006 - File not found / unreadable
//	FILE007 - Field count mismatch: width differs from admitted files (advisory)
//
// # Merge Errors (MRG001-MRG099)
//
//	MRG001 - No source files: nothing has been admitted yet
//	MRG002 - Invalid file index
//	MRG003 - Internal parse error after successful validation
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Write failure: the destination could not be written
//	EXP002 - Export busy: too many exports in progress
//	EXP003 - Export not found
//	EXP004 - Unknown export format
//	EXP005 - Invalid destination: bad table name or path outside the export dir
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found
//	SES002 - Request cancelled or timed out
//	SES003 - Session limit reached
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Sentinel errors are matched with errors.Is first, in table order. Errors
// without a sentinel fall back to case-insensitive substring patterns.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrSessionNotFound is returned when a session ID is unknown.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionLimit is returned when no more sessions may be opened.
var ErrSessionLimit = errors.New("session limit reached")

// ErrUnknownFormat is returned for an export format with no sink.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrInvalidDestination is returned for an export destination a sink refuses.
var ErrInvalidDestination = errors.New("invalid export destination")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	target  error  // matched with errors.Is when set
	pattern string // substring fallback when target is nil
	msg     UserMessage
}

// errorPatterns is ordered: more specific entries come first. FILE006 sits
// before EXP001 because a missing input file is also an IO failure.
var errorPatterns = []errorPattern{
	{
		target: ErrUnsupportedExtension,
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Choose a .csv or .txt file",
			Code:    "FILE001",
		},
	},
	{
		target: ErrEmptyFile,
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Choose a file with at least one line",
			Code:    "FILE002",
		},
	},
	{
		target: ErrMalformedRecord,
		msg: UserMessage{
			Message: "The file has a line with unbalanced quotes",
			Action:  "Fix the quoting on the reported line and try again",
			Code:    "FILE003",
		},
	},
	{
		target: ErrFileTooLarge,
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller parts",
			Code:    "FILE004",
		},
	},
	{
		target: ErrAlreadyAdmitted,
		msg: UserMessage{
			Message: "This file is already in the list",
			Action:  "Remove it first if you want to load it again",
			Code:    "FILE005",
		},
	},
	{
		target: fs.ErrNotExist,
		msg: UserMessage{
			Message: "File not found",
			Action:  "Check the path and try again",
			Code:    "FILE006",
		},
	},
	{
		target: fs.ErrPermission,
		msg: UserMessage{
			Message: "File could not be read",
			Action:  "Check the file permissions",
			Code:    "FILE006",
		},
	},
	{
		target: ErrFieldCountIncompatible,
		msg: UserMessage{
			Message: "Field count doesn't match the other files",
			Action:  "Confirm to add the file anyway, or choose a different file",
			Code:    "FILE007",
		},
	},
	{
		target: ErrNoSourceFiles,
		msg: UserMessage{
			Message: "There are no files to merge",
			Action:  "Add at least one file first",
			Code:    "MRG001",
		},
	},
	{
		target: ErrIndexOutOfRange,
		msg: UserMessage{
			Message: "That file is no longer in the list",
			Action:  "Refresh the file list and try again",
			Code:    "MRG002",
		},
	},
	{
		target: ErrInternal,
		msg: UserMessage{
			Message: "The file changed or could not be parsed after validation",
			Action:  "Remove the file and add it again",
			Code:    "MRG003",
		},
	},
	{
		target: ErrTooManyExports,
		msg: UserMessage{
			Message: "Too many exports are running",
			Action:  "Please wait a moment and try again",
			Code:    "EXP002",
		},
	},
	{
		target: ErrExportNotFound,
		msg: UserMessage{
			Message: "Export not found",
			Action:  "Start a new export",
			Code:    "EXP003",
		},
	},
	{
		target: ErrUnknownFormat,
		msg: UserMessage{
			Message: "Unknown export format",
			Action:  "Use txt, xlsx, sqlite or postgres",
			Code:    "EXP004",
		},
	},
	{
		target: ErrInvalidDestination,
		msg: UserMessage{
			Message: "The export destination is not allowed",
			Action:  "Use a relative file name or a plain table name",
			Code:    "EXP005",
		},
	},
	{
		target: ErrIOFailure,
		msg: UserMessage{
			Message: "Error writing output",
			Action:  "Please retry",
			Code:    "EXP001",
		},
	},
	{
		target: ErrSessionNotFound,
		msg: UserMessage{
			Message: "Session not found",
			Action:  "The session may have expired. Please start a new one",
			Code:    "SES001",
		},
	},
	{
		target: ErrSessionLimit,
		msg: UserMessage{
			Message: "Too many open sessions",
			Action:  "Close an existing session or try again later",
			Code:    "SES003",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SES002",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "SES002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	msg := MapError(fmt.Errorf("admit: %w", ErrEmptyFile))
//	// msg.Code == "FILE002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if ep.target != nil {
			if errors.Is(err, ep.target) {
				return withLine(ep.msg, err)
			}
			continue
		}
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// withLine appends the offending line number to malformed-record messages.
func withLine(msg UserMessage, err error) UserMessage {
	if line, ok := MalformedLine(err); ok {
		msg.Message = fmt.Sprintf("%s (line %d)", msg.Message, line)
	}
	return msg
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
