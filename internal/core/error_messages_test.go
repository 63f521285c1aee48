package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "unsupported extension",
			err:         fmt.Errorf("%w: %q", ErrUnsupportedExtension, ".xls"),
			wantCode:    "FILE001",
			wantMessage: "File type is not supported",
		},
		{
			name:        "empty file",
			err:         fmt.Errorf("%w: a.csv", ErrEmptyFile),
			wantCode:    "FILE002",
			wantMessage: "The file is empty",
		},
		{
			name:        "malformed record carries line",
			err:         &MalformedRecordError{Path: "a.csv", Line: 7},
			wantCode:    "FILE003",
			wantMessage: "The file has a line with unbalanced quotes (line 7)",
		},
		{
			name:        "missing input file is not an export failure",
			err:         ioFailure("open", "a.csv", fs.ErrNotExist),
			wantCode:    "FILE006",
			wantMessage: "File not found",
		},
		{
			name:        "field count mismatch",
			err:         fmt.Errorf("%w: b.csv", ErrFieldCountIncompatible),
			wantCode:    "FILE007",
			wantMessage: "Field count doesn't match the other files",
		},
		{
			name:        "no source files",
			err:         ErrNoSourceFiles,
			wantCode:    "MRG001",
			wantMessage: "There are no files to merge",
		},
		{
			name:        "write failure",
			err:         ioFailure("write", "out.txt", errors.New("disk full")),
			wantCode:    "EXP001",
			wantMessage: "Error writing output",
		},
		{
			name:        "invalid destination",
			err:         fmt.Errorf("%w: %q", ErrInvalidDestination, "../etc"),
			wantCode:    "EXP005",
			wantMessage: "The export destination is not allowed",
		},
		{
			name:        "export busy",
			err:         ErrTooManyExports,
			wantCode:    "EXP002",
			wantMessage: "Too many exports are running",
		},
		{
			name:        "context deadline",
			err:         fmt.Errorf("export: %w", context.DeadlineExceeded),
			wantCode:    "SES002",
			wantMessage: "Request timed out",
		},
		{
			name:        "rate limit by pattern",
			err:         errors.New("Rate Limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrEmptyFile)

	expected := "The file is empty (Code: FILE002). Choose a file with at least one line"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrNoSourceFiles, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("admit x.csv: %w", ErrAlreadyAdmitted)
		userErr := NewUserError(techErr)

		if userErr.Error() != "This file is already in the list" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrAlreadyAdmitted) {
			t.Error("Unwrap() should reach the original error")
		}
	})
}
