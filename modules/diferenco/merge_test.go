package diferenco

import (
	"context"
	"fmt"
	"os"
	"testing"
)

func TestMerge(t *testing.T) {
	const textO = `celery
garlic
onions
salmon
tomatoes
wine
`

	const textA = `celery
salmon
tomatoes
garlic
onions
wine
`

	const textB = `celery
garlic
salmon
tomatoes
onions
wine
`
	content, conflict, err := Merge(context.Background(), &MergeOptions{
		TextO: textO, TextA: textA, TextB: textB,
		LabelO: "o.txt", LabelA: "a.txt", LabelB: "b.txt",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s\nconflicts: %v\n", content, conflict)
}

func TestMerge2(t *testing.T) {
	const textO = `celery
garlic
onions
salmon
tomatoes
wine
`

	const textA = `celery
salmon
tomatoes
garlic
onions
wine
`

	content, conflict, err := Merge(context.Background(), &MergeOptions{
		TextO: textO, TextA: textA, TextB: textA,
		LabelO: "o.txt", LabelA: "a.txt", LabelB: "b.txt",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s\nconflicts: %v\n", content, conflict)
}

func TestMerge3(t *testing.T) {
	const textO = `celery
garlic
onions
salmon
tomatoes
wine
`

	const textA = `celery
garlic
onions
salmon
tomatoes
wine
0000
00000
`

	const textB = `celery
garlic
onions
salmon
tomatoes
wine
0000
00000
77777
`

	content, conflict, err := Merge(context.Background(), &MergeOptions{
		TextO: textO, TextA: textA, TextB: textB,
		LabelO: "o.txt", LabelA: "a.txt", LabelB: "b.txt",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s\nconflicts: %v\n", content, conflict)
}

func TestDefaultMerge(t *testing.T) {
	const textO = "celery\ngarlic\nonions\n"
	const textA = "celery\nsalmon\nonions\n"
	const textB = "celery\ngarlic\nonions\nwine\n"
	content, conflict, err := DefaultMerge(context.Background(), textO, textA, textB, "base", "ours", "theirs")
	if err != nil {
		t.Fatalf("DefaultMerge: %v", err)
	}
	if conflict {
		t.Fatalf("unexpected conflict:\n%s", content)
	}
}
