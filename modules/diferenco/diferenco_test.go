package diferenco

import (
	"context"
	"os"
	"testing"

	"github.com/mediagit/mediagit/modules/diferenco/color"
)

func TestDoUnified(t *testing.T) {
	textA := "hello\nworld\n\nfoo\n"
	textB := "hello\nnovel\nworld\n\nfoo bar\n"
	u, err := DoUnified(context.Background(), &Options{
		From: &File{Path: "a.txt"},
		To:   &File{Path: "b.txt"},
		A:    textA,
		B:    textB,
		Algo: Histogram,
	})
	if err != nil {
		t.Fatalf("DoUnified: %v", err)
	}
	if len(u.Hunks) == 0 {
		t.Fatalf("expected at least one hunk")
	}
	e := NewUnifiedEncoder(os.Stderr)
	e.SetColor(color.NewColorConfig())
	if err := e.Encode([]*Unified{u}); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestDoUnifiedNoChanges(t *testing.T) {
	text := "a\nb\nc\n"
	u, err := DoUnified(context.Background(), &Options{
		From: &File{Path: "a.txt"},
		To:   &File{Path: "a.txt"},
		A:    text,
		B:    text,
		Algo: Histogram,
	})
	if err != nil {
		t.Fatalf("DoUnified: %v", err)
	}
	if len(u.Hunks) != 0 {
		t.Fatalf("expected no hunks for identical input, got %d", len(u.Hunks))
	}
}

func TestDoUnifiedAdded(t *testing.T) {
	u, err := DoUnified(context.Background(), &Options{
		From: nil,
		To:   &File{Path: "a.txt"},
		A:    "",
		B:    "hello\n",
		Algo: Histogram,
	})
	if err != nil {
		t.Fatalf("DoUnified: %v", err)
	}
	if len(u.Hunks) == 0 {
		t.Fatalf("expected a hunk for a newly added file")
	}
}

func TestDoUnifiedDeleted(t *testing.T) {
	u, err := DoUnified(context.Background(), &Options{
		From: &File{Path: "a.txt"},
		To:   nil,
		A:    "hello\n",
		B:    "",
		Algo: Histogram,
	})
	if err != nil {
		t.Fatalf("DoUnified: %v", err)
	}
	if len(u.Hunks) == 0 {
		t.Fatalf("expected a hunk for a deleted file")
	}
}

func TestShowPatch(t *testing.T) {
	patch := []*Unified{
		{
			From:     &File{Path: "docs/a.png", Hash: "1ab12893fc666524ed79caae503e12c20a748e2f92db7730c8be09d981970f96", Mode: 33188},
			IsBinary: true,
		},
		{
			To:          &File{Path: "images/windows7.iso", Hash: "adba50d9794b9ef3f7ec8cbc680f7f1fa3fbf9df0ac8d1f9b9ccab6d941bc11b", Mode: 33188},
			IsFragments: true,
		},
	}
	e := NewUnifiedEncoder(os.Stderr)
	e.SetColor(color.NewColorConfig())
	if err := e.Encode(patch); err != nil {
		t.Fatalf("encode: %v", err)
	}
}
