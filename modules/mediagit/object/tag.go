// Copyright 2018 Sourced Technologies, S.L.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"fmt"
	"io"
	"strings"

	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/modules/streamio"
)

// TAG_MAGIC distinguishes a tag's canonical bytes on read (see object.go).
var TAG_MAGIC = [4]byte{'Z', 'G', 0x00, 0x01}

// Tag is a named pointer to any object with tagger metadata and a message,
// encoded analogously to Commit (§6): object/type/tag/tagger headers, blank
// line, message.
type Tag struct {
	Hash       plumbing.Hash `json:"hash"`
	Object     plumbing.Hash `json:"object"`
	ObjectType ObjectType    `json:"type"`
	Name       string        `json:"name"`
	Tagger     Signature     `json:"tagger"`
	Message    string        `json:"message"`
}

func (t *Tag) Decode(reader Reader) error {
	if reader.Type() != TagObject {
		return ErrUnsupportedObject
	}
	t.Hash = reader.Hash()
	br := streamio.GetBufioReader(reader)
	defer streamio.PutBufioReader(br)

	var finishedHeaders bool
	var message strings.Builder
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}

		if finishedHeaders {
			message.WriteString(line)
		} else {
			text := strings.TrimSuffix(line, "\n")
			if len(text) == 0 {
				finishedHeaders = true
				continue
			}

			field, value, ok := strings.Cut(text, " ")
			if !ok {
				return fmt.Errorf("object: invalid tag header: %s", text)
			}

			switch field {
			case "object":
				if !plumbing.ValidateHashHex(value) {
					return fmt.Errorf("object: invalid tag object oid: %s", value)
				}
				t.Object = plumbing.NewHash(value)
			case "type":
				t.ObjectType = ObjectTypeFromString(value)
			case "tag":
				t.Name = value
			case "tagger":
				t.Tagger.Decode([]byte(value))
			default:
				return fmt.Errorf("object: unknown tag header: %s", field)
			}
		}
		if readErr == io.EOF {
			break
		}
	}

	t.Message = message.String()
	return nil
}

func (t *Tag) Encode(w io.Writer) error {
	if _, err := w.Write(TAG_MAGIC[:]); err != nil {
		return err
	}
	headers := []string{
		fmt.Sprintf("object %s", t.Object),
		fmt.Sprintf("type %s", t.ObjectType),
		fmt.Sprintf("tag %s", t.Name),
		fmt.Sprintf("tagger %s", t.Tagger.String()),
	}
	_, err := fmt.Fprintf(w, "%s\n\n%s", strings.Join(headers, "\n"), t.Message)
	return err
}

func (t *Tag) Equal(other *Tag) bool {
	if (t == nil) != (other == nil) {
		return false
	}
	if t != nil {
		return t.Object == other.Object &&
			t.ObjectType == other.ObjectType &&
			t.Name == other.Name &&
			t.Tagger == other.Tagger &&
			t.Message == other.Message
	}
	return true
}
