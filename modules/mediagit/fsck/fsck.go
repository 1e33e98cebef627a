// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package fsck implements §4.12's connectivity/integrity check and the GC
// candidate discovery it feeds: walk every ref to find the reachable object
// set, verify each reachable object re-hashes cleanly, and report what's
// dangling (unreachable but present) or missing (reachable but absent).
package fsck

import (
	"context"
	"fmt"
	"sort"

	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
)

// Severity classifies how serious an Issue is, per §4.12.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Kind names what an Issue describes.
type Kind int

const (
	Corruption Kind = iota
	Dangling
	Missing
	BrokenSymref
)

func (k Kind) String() string {
	switch k {
	case Corruption:
		return "corruption"
	case Dangling:
		return "dangling"
	case Missing:
		return "missing"
	case BrokenSymref:
		return "broken-symref"
	default:
		return "unknown"
	}
}

// Issue is a single finding from a Run.
type Issue struct {
	Severity Severity
	Kind     Kind
	OID      plumbing.Hash
	Ref      plumbing.ReferenceName
	Detail   string
}

func (i Issue) String() string {
	if i.Ref != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", i.Severity, i.Kind, i.Ref, i.Detail)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", i.Severity, i.Kind, i.OID, i.Detail)
}

// Report is the outcome of a single Run.
type Report struct {
	Issues         []Issue
	ReachableCount int
	ScannedCount   int
}

// Passed reports whether no Error-severity issue was found.
func (r *Report) Passed() bool {
	for _, i := range r.Issues {
		if i.Severity == Error {
			return false
		}
	}
	return true
}

// Options controls Run's optional repair pass.
type Options struct {
	// Repair removes dangling objects found during the walk.
	Repair bool
}

// Verify is §4.12's cheap pre-flight: every ref tip resolves, and the
// commit it names is present and decodes cleanly. Unlike Run it never
// descends into trees/blobs or scans the database for dangling objects, so
// commit and push can afford to call it on every invocation rather than
// only on an explicit fsck.
func Verify(ctx context.Context, repo *repository.Repository) (*Report, error) {
	report := &Report{}

	tips, brokenRefs, err := refTips(repo)
	if err != nil {
		return nil, err
	}
	report.Issues = append(report.Issues, brokenRefs...)

	seen := make(map[plumbing.Hash]bool)
	for _, h := range tips {
		if h.IsZero() || seen[h] {
			continue
		}
		seen[h] = true
		report.ScannedCount++
		if _, err := repo.Objects.Commit(ctx, h); err != nil {
			if plumbing.IsNoSuchObject(err) {
				report.Issues = append(report.Issues, Issue{Severity: Error, Kind: Missing, OID: h, Detail: "ref names a missing commit"})
				continue
			}
			report.Issues = append(report.Issues, Issue{Severity: Error, Kind: Corruption, OID: h, Detail: err.Error()})
			continue
		}
		report.ReachableCount++
	}
	return report, nil
}

// Run walks every ref to the reachable object set, verifies each reachable
// object, and classifies what's dangling or missing (§4.12). With
// Options.Repair, dangling objects are deleted from the object database.
func Run(ctx context.Context, repo *repository.Repository, opts Options) (*Report, error) {
	report := &Report{}

	tips, brokenRefs, err := refTips(repo)
	if err != nil {
		return nil, err
	}
	report.Issues = append(report.Issues, brokenRefs...)

	reachable, walkIssues, err := walkReachable(ctx, repo, tips)
	if err != nil {
		return nil, err
	}
	report.Issues = append(report.Issues, walkIssues...)
	report.ReachableCount = len(reachable)

	for oid := range reachable {
		report.ScannedCount++
		if _, err := repo.Objects.Read(ctx, oid); err != nil {
			if plumbing.IsNoSuchObject(err) {
				report.Issues = append(report.Issues, Issue{Severity: Error, Kind: Missing, OID: oid, Detail: "reachable object absent from storage"})
				continue
			}
			report.Issues = append(report.Issues, Issue{Severity: Error, Kind: Corruption, OID: oid, Detail: err.Error()})
		}
	}

	stored, err := repo.Objects.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var dangling []plumbing.Hash
	for _, oid := range stored {
		if oid.IsZero() {
			continue
		}
		if _, ok := reachable[oid]; ok {
			continue
		}
		dangling = append(dangling, oid)
	}
	sort.Slice(dangling, func(i, j int) bool { return dangling[i].String() < dangling[j].String() })
	for _, oid := range dangling {
		report.Issues = append(report.Issues, Issue{Severity: Info, Kind: Dangling, OID: oid, Detail: "unreachable from any ref"})
		if opts.Repair {
			_ = repo.Objects.Delete(ctx, oid)
		}
	}

	return report, nil
}

// refTips resolves every reference down to the commit it ultimately names,
// reporting a Warning for any symbolic ref whose target does not resolve.
func refTips(repo *repository.Repository) ([]plumbing.Hash, []Issue, error) {
	db, err := repo.Refs.References()
	if err != nil {
		return nil, nil, err
	}

	var tips []plumbing.Hash
	var issues []Issue
	for _, ref := range db.References() {
		switch ref.Type() {
		case plumbing.HashReference:
			tips = append(tips, ref.Hash())
		case plumbing.SymbolicReference:
			resolved, err := repo.Refs.Reference(ref.Target())
			if err != nil {
				issues = append(issues, Issue{Severity: Warning, Kind: BrokenSymref, Ref: ref.Name(), Detail: fmt.Sprintf("target %s does not resolve: %v", ref.Target(), err)})
				continue
			}
			if resolved.Type() == plumbing.HashReference {
				tips = append(tips, resolved.Hash())
			}
		}
	}
	if head, err := repo.Refs.HEAD(); err == nil && head != nil && head.Type() == plumbing.HashReference {
		tips = append(tips, head.Hash())
	}
	return tips, issues, nil
}

// walkReachable performs the BFS-over-commit-parents walk of §4.12,
// descending each visited commit's tree to add its blob and tree oids.
// Grounded on graph.MergeBase's memoized BFS shape, generalized from
// two-sided flag tracking to a single visited set spanning every ref tip.
func walkReachable(ctx context.Context, repo *repository.Repository, tips []plumbing.Hash) (map[plumbing.Hash]struct{}, []Issue, error) {
	reachable := make(map[plumbing.Hash]struct{})
	var issues []Issue

	visitedCommits := make(map[plumbing.Hash]bool)
	queue := append([]plumbing.Hash{}, tips...)
	for i := 0; i < len(queue); i++ {
		h := queue[i]
		if h.IsZero() || visitedCommits[h] {
			continue
		}
		visitedCommits[h] = true
		reachable[h] = struct{}{}

		c, err := repo.Objects.Commit(ctx, h)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				issues = append(issues, Issue{Severity: Error, Kind: Missing, OID: h, Detail: "ref names a missing commit"})
				continue
			}
			return nil, nil, err
		}
		reachable[c.Tree] = struct{}{}
		if err := walkTree(ctx, repo, c.Tree, reachable, &issues); err != nil {
			return nil, nil, err
		}
		queue = append(queue, c.Parents...)
	}
	return reachable, issues, nil
}

// walkTree adds every entry of the tree at oid to reachable. The repository
// uses a flat-path tree model (§4.8: each entry's name is the full
// repository-relative path), so there is no subtree recursion — one tree
// object enumerates every blob a commit carries.
func walkTree(ctx context.Context, repo *repository.Repository, oid plumbing.Hash, reachable map[plumbing.Hash]struct{}, issues *[]Issue) error {
	if oid.IsZero() {
		return nil
	}
	tree, err := repo.Objects.Tree(ctx, oid)
	if err != nil {
		if plumbing.IsNoSuchObject(err) {
			*issues = append(*issues, Issue{Severity: Error, Kind: Missing, OID: oid, Detail: "commit names a missing tree"})
			return nil
		}
		return err
	}
	for _, e := range tree.Entries {
		reachable[e.Hash] = struct{}{}
	}
	return nil
}
