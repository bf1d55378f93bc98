// Package merlin implements the wire protocol of the external analysis
// tool: one process per request, the document on stdin, and a single JSON
// value terminated by a newline on stdout.
//
// Every reply is an envelope {"class": ..., "value": ...}. Only the
// "return" class carries a usable payload. The payload shape depends on the
// command that was run, which the envelope does not say; callers must know
// which parser to apply.
package merlin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"
)

// Subcommand is the token that precedes every command. It asks the tool to
// answer one query and exit.
const Subcommand = "single"

// Command is a tool command.
type Command string

const (
	CommandErrors         Command = "errors"
	CommandCompletePrefix Command = "complete-prefix"
	CommandLocate         Command = "locate"
	CommandOccurrences    Command = "occurrences"
)

// Buffer is sent as the file name of documents that have no path.
const Buffer = "*buffer*"

// Position formats a 1-indexed line and 0-based column the way the tool
// expects them.
func Position(line, col int) string {
	return strconv.Itoa(line) + ":" + strconv.Itoa(col)
}

func ErrorsArgs(filename string) []string {
	if filename == "" {
		filename = Buffer
	}
	return []string{string(CommandErrors), "-filename", filename}
}

func CompletePrefixArgs(line, col int, prefix string) []string {
	return []string{string(CommandCompletePrefix),
		"-position", Position(line, col),
		"-prefix", prefix,
		"-doc", "true",
	}
}

func LocateArgs(line, col int, filename string) []string {
	if filename == "" {
		filename = Buffer
	}
	return []string{string(CommandLocate), "-position", Position(line, col), "-filename", filename}
}

func OccurrencesArgs(line, col int) []string {
	return []string{string(CommandOccurrences), "-identifier-at", Position(line, col)}
}

// Argv is the full argument list for an invocation: the subcommand, the
// command arguments and any extra flags.
func Argv(args []string, extra []string) []string {
	res := make([]string, 0, 1+len(args)+len(extra))
	res = append(res, Subcommand)
	res = append(res, args...)
	return append(res, extra...)
}

var (
	ErrEmptyResponse = errors.New("empty response")
	ErrNotJSON       = errors.New("response is not valid JSON")
	ErrNotObject     = errors.New("response is not a JSON object")
	ErrMissingClass  = errors.New("response has no class")
)

// Class is the class of a reply envelope.
type Class string

const (
	ClassReturn    Class = "return"
	ClassException Class = "exception"
	ClassFailure   Class = "failure"
	ClassError     Class = "error"
)

// Envelope is a decoded reply.
type Envelope struct {
	Class Class
	Value gjson.Result
}

// ReplyError is returned by Envelope.Err for every class but "return".
type ReplyError struct {
	Class   Class
	Message string
}

func (r *ReplyError) Error() string {
	if r.Message == "" {
		return fmt.Sprintf("merlin %v", r.Class)
	}
	return fmt.Sprintf("merlin %v: %v", r.Class, r.Message)
}

// Known reports whether the class is one the protocol defines.
func (r *ReplyError) Known() bool {
	switch r.Class {
	case ClassException, ClassFailure, ClassError:
		return true
	}
	return false
}

// DecodeEnvelope parses the buffered output of one invocation.
func DecodeEnvelope(out string) (Envelope, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return Envelope{}, ErrEmptyResponse
	}
	if !gjson.Valid(out) {
		return Envelope{}, ErrNotJSON
	}
	root := gjson.Parse(out)
	if !root.IsObject() {
		return Envelope{}, ErrNotObject
	}
	class := root.Get("class")
	if class.Type != gjson.String || class.String() == "" {
		return Envelope{}, ErrMissingClass
	}
	return Envelope{
		Class: Class(class.String()),
		Value: root.Get("value"),
	}, nil
}

// Err returns nil for a "return" envelope and a *ReplyError otherwise. The
// error message is the value when it is a string, its raw JSON otherwise.
func (e Envelope) Err() error {
	if e.Class == ClassReturn {
		return nil
	}
	msg := e.Value.Raw
	if e.Value.Type == gjson.String {
		msg = e.Value.String()
	}
	return &ReplyError{Class: e.Class, Message: msg}
}

// IsReplyError reports whether err is, or wraps, a *ReplyError.
func IsReplyError(err error) bool {
	var re *ReplyError
	return xerrors.As(err, &re)
}
