// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/mediagit/mediagit/modules/mediagit/backend"
	"github.com/mediagit/mediagit/modules/mediagit/backend/pack"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/plumbing"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps the plumbing error taxonomy (§7) onto an HTTP status, so
// every handler surfaces the same Kind the same way instead of picking
// codes ad hoc.
func statusFor(err error) int {
	switch k, ok := plumbing.KindOf(err); {
	case !ok:
		return http.StatusInternalServerError
	case k == plumbing.KindNotFound:
		return http.StatusNotFound
	case k == plumbing.KindConflict:
		return http.StatusConflict
	case k == plumbing.KindInvalidInput:
		return http.StatusBadRequest
	case k == plumbing.KindCorruption:
		return http.StatusUnprocessableEntity
	case k == plumbing.KindCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func hashesOf(hexes []string) []plumbing.Hash {
	out := make([]plumbing.Hash, 0, len(hexes))
	for _, h := range hexes {
		out = append(out, plumbing.NewHash(h))
	}
	return out
}

// detectType classifies an object's raw canonical bytes by the magic
// prefix Tree/Commit/Tag.Encode writes (§6); a blob carries no framing, so
// anything without a recognized magic is treated as one.
func detectType(raw []byte) object.ObjectType {
	switch {
	case bytes.HasPrefix(raw, object.COMMIT_MAGIC[:]):
		return object.CommitObject
	case bytes.HasPrefix(raw, object.TREE_MAGIC[:]):
		return object.TreeObject
	case bytes.HasPrefix(raw, object.TAG_MAGIC[:]):
		return object.TagObject
	default:
		return object.BlobObject
	}
}

type RefInfo struct {
	Name   string `json:"name"`
	OID    string `json:"oid_hex,omitempty"`
	Target string `json:"target,omitempty"`
}

type InfoRefsResponse struct {
	Refs         []RefInfo `json:"refs"`
	Capabilities []string  `json:"capabilities"`
}

// infoRefs serves GET /info/refs (§6): every reference this repository
// holds, hash references resolved to their oid, symbolic references
// reporting their target rather than being followed.
func (s *Server) infoRefs(w http.ResponseWriter, r *http.Request) {
	db, err := s.repo.Refs.References()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	refs := db.References()
	out := make([]RefInfo, 0, len(refs))
	for _, ref := range refs {
		ri := RefInfo{Name: string(ref.Name())}
		switch ref.Type() {
		case plumbing.HashReference:
			ri.OID = ref.Hash().String()
		case plumbing.SymbolicReference:
			ri.Target = string(ref.Target())
		}
		out = append(out, ri)
	}
	writeJSON(w, http.StatusOK, InfoRefsResponse{Refs: out, Capabilities: []string{"push", "pull"}})
}

type RefUpdateRequest struct {
	Name   string  `json:"name"`
	OldOID *string `json:"old_oid,omitempty"`
	NewOID string  `json:"new_oid"`
}

type RefsUpdateRequest struct {
	Updates []RefUpdateRequest `json:"updates"`
	Force   bool               `json:"force"`
}

type RefUpdateResult struct {
	RefName string `json:"ref_name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type RefsUpdateResponse struct {
	Success bool              `json:"success"`
	Results []RefUpdateResult `json:"results"`
}

// refsUpdate serves POST /refs/update (§6): applies each requested ref
// change with an optimistic-concurrency precondition on old_oid, unless
// force is set. One failing update does not abort the rest; each is
// reported independently, matching S6's expectation that the server ref
// stays unchanged only for the update that actually lost the race.
func (s *Server) refsUpdate(w http.ResponseWriter, r *http.Request) {
	var req RefsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := RefsUpdateResponse{Success: true}
	for _, u := range req.Updates {
		result := s.applyRefUpdate(u, req.Force)
		if !result.Success {
			resp.Success = false
		}
		resp.Results = append(resp.Results, result)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) applyRefUpdate(u RefUpdateRequest, force bool) RefUpdateResult {
	name := plumbing.ReferenceName(u.Name)
	newOID := plumbing.NewHash(u.NewOID)

	var oldRef *plumbing.Reference
	if !force {
		current, err := s.repo.Refs.Reference(name)
		if err != nil && err != plumbing.ErrReferenceNotFound {
			return RefUpdateResult{RefName: u.Name, Error: err.Error()}
		}
		wantOld := plumbing.ZeroHash
		if u.OldOID != nil {
			wantOld = plumbing.NewHash(*u.OldOID)
		}
		var currentOID plumbing.Hash
		if current != nil {
			currentOID = current.Hash()
		}
		if currentOID != wantOld {
			return RefUpdateResult{RefName: u.Name, Error: "not fast-forward"}
		}
		oldRef = current
	}

	newRef := plumbing.NewHashReference(name, newOID)
	if err := s.repo.Refs.ReferenceUpdate(newRef, oldRef); err != nil {
		return RefUpdateResult{RefName: u.Name, Error: err.Error()}
	}
	return RefUpdateResult{RefName: u.Name, Success: true}
}

type WantRequest struct {
	Want []string `json:"want"`
	Have []string `json:"have"`
}

// reachableFrom walks commit parents from tips, collecting every commit,
// tree and blob oid reachable from them — the same flat-tree BFS
// fsck.Run's walkReachable uses, generalized here to the want/have
// negotiation rather than the whole-repository sweep.
func (s *Server) reachableFrom(ctx context.Context, tips []plumbing.Hash) (map[plumbing.Hash]struct{}, error) {
	visited := make(map[plumbing.Hash]struct{})
	queue := append([]plumbing.Hash{}, tips...)
	for i := 0; i < len(queue); i++ {
		h := queue[i]
		if h.IsZero() {
			continue
		}
		if _, ok := visited[h]; ok {
			continue
		}
		visited[h] = struct{}{}

		c, err := s.repo.Objects.Commit(ctx, h)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			return nil, err
		}
		if _, ok := visited[c.Tree]; !ok {
			tree, err := s.repo.Objects.Tree(ctx, c.Tree)
			if err != nil {
				return nil, err
			}
			visited[c.Tree] = struct{}{}
			for _, e := range tree.Entries {
				visited[e.Hash] = struct{}{}
			}
		}
		queue = append(queue, c.Parents...)
	}
	return visited, nil
}

// objectsWant serves POST /objects/want (§6): everything reachable from
// want but not from have, streamed back as a single pack.
func (s *Server) objectsWant(w http.ResponseWriter, r *http.Request) {
	var req WantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx := r.Context()

	wantSet, err := s.reachableFrom(ctx, hashesOf(req.Want))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	haveSet, err := s.reachableFrom(ctx, hashesOf(req.Have))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	pw, err := pack.NewWriter(backend.Balanced, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer pw.Drop()

	for oid := range wantSet {
		if _, have := haveSet[oid]; have {
			continue
		}
		raw, err := s.repo.Objects.Read(ctx, oid)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		if _, err := pw.AddObject(oid, detectType(raw), raw); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	data, err := pw.Finalize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// objectsPack serves POST /objects/pack (§6): ingests a received pack
// through PackTransaction so a partial transfer never leaves orphan
// objects visible to readers.
func (s *Server) objectsPack(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pr, err := pack.NewReader(data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	tx, err := s.repo.Objects.Begin()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	for _, oid := range pr.ListObjects() {
		typ, payload, err := pr.GetObject(oid)
		if err != nil {
			_ = tx.Rollback()
			writeError(w, statusFor(err), err)
			return
		}
		if err := tx.AddObject(oid, typ, payload); err != nil {
			_ = tx.Rollback()
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if err := tx.Commit(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": pr.ObjectCount()})
}
