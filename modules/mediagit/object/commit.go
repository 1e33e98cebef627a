// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/streamio"
)

// COMMIT_MAGIC distinguishes a commit's canonical bytes on read (see object.go).
var COMMIT_MAGIC = [4]byte{'Z', 'C', 0x00, 0x01}

// DateFormat matches Git's commit signature date rendering for human display.
const DateFormat = "Mon Jan 02 15:04:05 2006 -0700"

type Signature struct {
	Name  string    `json:"name"`
	Email string    `json:"email"`
	When  time.Time `json:"when"`
}

var timeZoneLength = 5

func (s *Signature) decodeTimeAndTimeZone(b []byte) {
	space := bytes.IndexByte(b, ' ')
	if space == -1 {
		space = len(b)
	}

	ts, err := strconv.ParseInt(string(b[:space]), 10, 64)
	if err != nil {
		return
	}

	s.When = time.Unix(ts, 0).In(time.UTC)
	tzStart := space + 1
	if tzStart >= len(b) || tzStart+timeZoneLength > len(b) {
		return
	}

	timezone := string(b[tzStart : tzStart+timeZoneLength])
	tzhours, err1 := strconv.ParseInt(timezone[0:3], 10, 64)
	tzmins, err2 := strconv.ParseInt(timezone[3:], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	if tzhours < 0 {
		tzmins *= -1
	}

	tz := time.FixedZone("", int(tzhours*60*60+tzmins*60))
	s.When = s.When.In(tz)
}

// Decode parses "<name> <<email>> <unix_ts> <tz>" into a signature.
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open == -1 || close == -1 || close < open {
		return
	}

	s.Name = string(bytes.Trim(b[:open], " "))
	s.Email = string(b[open+1 : close])

	if hasTime := close+2 < len(b); hasTime {
		s.decodeTimeAndTimeZone(b[close+2:])
	}
}

const formatTimeZoneOnly = "-0700"

// String formats a Signature per §6: "<name> <<email>> <unix_ts> <tz>".
func (s *Signature) String() string {
	at := s.When.Unix()
	zone := s.When.Format(formatTimeZoneOnly)
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, at, zone)
}

// Commit is (tree_oid, parents, author_sig, committer_sig, message) per §3.
type Commit struct {
	Hash      plumbing.Hash   `json:"hash"`
	Author    Signature       `json:"author"`
	Committer Signature       `json:"committer"`
	Parents   []plumbing.Hash `json:"parents"`
	Tree      plumbing.Hash   `json:"tree"`
	Message   string          `json:"message"`
	b         Backend
}

// Encode writes COMMIT_MAGIC followed by the commit's canonical,
// line-oriented bytes, per §6:
//
//	tree <hex_oid>
//	parent <hex_oid>          (repeated 0..n times)
//	author <name> <<email>> <unix_ts> <tz>
//	committer <name> <<email>> <unix_ts> <tz>
//
//	<message>
func (c *Commit) Encode(w io.Writer) error {
	if _, err := w.Write(COMMIT_MAGIC[:]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "tree %s\n", c.Tree.String()); err != nil {
		return err
	}
	for _, parent := range c.Parents {
		if _, err := fmt.Fprintf(w, "parent %s\n", parent.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "author %s\ncommitter %s\n", c.Author.String(), c.Committer.String()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s", c.Message)
	return err
}

func (c *Commit) Decode(reader Reader) error {
	if reader.Type() != CommitObject {
		return ErrUnsupportedObject
	}
	c.Hash = reader.Hash()
	r := streamio.GetBufioReader(reader)
	defer streamio.PutBufioReader(r)

	var message strings.Builder
	var finishedHeaders bool
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		text := strings.TrimSuffix(line, "\n")
		if len(text) == 0 && !finishedHeaders {
			finishedHeaders = true
			continue
		}
		if !finishedHeaders {
			field, value, ok := strings.Cut(text, " ")
			if !ok {
				if readErr == io.EOF {
					break
				}
				continue
			}
			switch field {
			case "tree":
				c.Tree = plumbing.NewHash(value)
			case "parent":
				c.Parents = append(c.Parents, plumbing.NewHash(value))
			case "author":
				c.Author.Decode([]byte(value))
			case "committer":
				c.Committer.Decode([]byte(value))
			default:
				return fmt.Errorf("object: unknown commit header: %s", field)
			}
		} else {
			_, _ = message.WriteString(line)
		}
		if readErr == io.EOF {
			break
		}
	}
	c.Message = message.String()
	return nil
}

// Less orders commits by committer time, then author time, then hash.
func (c *Commit) Less(rhs *Commit) bool {
	return c.Committer.When.Before(rhs.Committer.When) ||
		(c.Committer.When.Equal(rhs.Committer.When) &&
			(c.Author.When.Before(rhs.Author.When) ||
				(c.Author.When.Equal(rhs.Author.When) && bytes.Compare(c.Hash[:], rhs.Hash[:]) < 0)))
}

func indent(t string) string {
	var output []string
	for line := range strings.SplitSeq(t, "\n") {
		if len(line) != 0 {
			line = "    " + line
		}
		output = append(output, line)
	}
	return strings.Join(output, "\n")
}

func (c *Commit) String() string {
	return fmt.Sprintf(
		"commit %s\nAuthor: %s\nDate:   %s\n\n%s\n",
		c.Hash, c.Author.String(), c.Author.When.Format(DateFormat), indent(c.Message),
	)
}

func (c *Commit) Subject() string {
	if i := strings.IndexAny(c.Message, "\r\n"); i != -1 {
		return c.Message[0:i]
	}
	return c.Message
}

// Root returns the Tree this commit points at.
func (c *Commit) Root(ctx context.Context) (*Tree, error) {
	return resolveTree(ctx, c.b, c.Tree)
}

// CommitIter is a closable iterator over commits.
type CommitIter interface {
	Next(context.Context) (*Commit, error)
	ForEach(context.Context, func(*Commit) error) error
	Close()
}

// MakeParents returns a CommitIter over this commit's direct parents.
func (c *Commit) MakeParents() CommitIter {
	return NewCommitIter(c.b, c.Parents)
}

func (c *Commit) NumParents() int {
	return len(c.Parents)
}

// GetCommit gets a commit from an object storer and decodes it.
func GetCommit(ctx context.Context, b Backend, oid plumbing.Hash) (*Commit, error) {
	return b.Commit(ctx, oid)
}

// NewSnapshotCommit copies a commit, rebinding it to a different backend —
// used when grafting a decoded commit onto a live repository handle.
func NewSnapshotCommit(cc *Commit, b Backend) *Commit {
	return &Commit{
		Hash: cc.Hash, Author: cc.Author, Committer: cc.Committer,
		Parents: cc.Parents, Tree: cc.Tree, Message: cc.Message, b: b,
	}
}
