package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ShorthandCreate(t *testing.T) {
	t.Parallel()
	reply := "Here is the file:\n\n```filename: src/add.py\ndef add(a, b):\n    return a + b\n```\nDone."

	res := Parse(reply)
	require.Len(t, res.Ops, 1)
	assert.Equal(t, KindCreate, res.Ops[0].Kind)
	assert.Equal(t, "src/add.py", res.Ops[0].Path)
	assert.Equal(t, "def add(a, b):\n    return a + b", res.Ops[0].Content)
	assert.Empty(t, res.Warnings)
}

func TestParse_DirectiveThenContentFence(t *testing.T) {
	t.Parallel()
	reply := "```filename: app.py\n```\n\n```\nprint('hello')\n```"

	res := Parse(reply)
	require.Len(t, res.Ops, 1)
	assert.Equal(t, KindCreate, res.Ops[0].Kind)
	assert.Equal(t, "app.py", res.Ops[0].Path)
	assert.Equal(t, "print('hello')", res.Ops[0].Content)
}

func TestParse_LongFormDirectiveInBody(t *testing.T) {
	t.Parallel()
	// Directive rides as the first line inside the fence.
	reply := "```\nfilename: lib/util.py\nx = 1\ny = 2\n```"

	res := Parse(reply)
	require.Len(t, res.Ops, 1)
	assert.Equal(t, "lib/util.py", res.Ops[0].Path)
	assert.Equal(t, "x = 1\ny = 2", res.Ops[0].Content)
}

func TestParse_UpdateAndCreateSynonym(t *testing.T) {
	t.Parallel()
	reply := "```update: main.py\nv2\n```\n```create: extra.py\ncontent\n```"

	res := Parse(reply)
	require.Len(t, res.Ops, 2)
	assert.Equal(t, KindUpdate, res.Ops[0].Kind)
	assert.Equal(t, "main.py", res.Ops[0].Path)
	assert.Equal(t, KindCreate, res.Ops[1].Kind)
	assert.Equal(t, "extra.py", res.Ops[1].Path)
}

func TestParse_ReadSingleLineFence(t *testing.T) {
	t.Parallel()
	res := Parse("Let me check first.\n```read: src/config.py```\n")

	require.Len(t, res.Ops, 1)
	assert.Equal(t, KindRead, res.Ops[0].Kind)
	assert.Equal(t, "src/config.py", res.Ops[0].Path)
}

func TestParse_ReadMultiLineFence(t *testing.T) {
	t.Parallel()
	res := Parse("```read: src/config.py\n```")

	require.Len(t, res.Ops, 1)
	assert.Equal(t, KindRead, res.Ops[0].Kind)
}

func TestParse_MalformedFenceDropped(t *testing.T) {
	t.Parallel()
	// A directive with no content block, followed by a valid update.
	reply := "```filename: src/a.py\n```\nno content block here\n```update: src/b.py\nprint(\"ok\")\n```"

	res := Parse(reply)
	require.Len(t, res.Ops, 1)
	assert.Equal(t, KindUpdate, res.Ops[0].Kind)
	assert.Equal(t, "src/b.py", res.Ops[0].Path)
	assert.Equal(t, `print("ok")`, res.Ops[0].Content)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "src/a.py")
}

func TestParse_EmptyContentFenceDropped(t *testing.T) {
	t.Parallel()
	reply := "```filename: a.py\n```\n```\n   \n```"

	res := Parse(reply)
	assert.Empty(t, res.Ops)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "empty")
}

func TestParse_InvalidPathDropped(t *testing.T) {
	t.Parallel()
	reply := "```filename: ../../etc/passwd\nmalice\n```\n```filename: ok.py\nfine\n```"

	res := Parse(reply)
	require.Len(t, res.Ops, 1)
	assert.Equal(t, "ok.py", res.Ops[0].Path)
	require.NotEmpty(t, res.Warnings)
}

func TestParse_PathWrappedInBackticks(t *testing.T) {
	t.Parallel()
	res := Parse("```filename: `src/main.py`\ncode\n```")

	require.Len(t, res.Ops, 1)
	assert.Equal(t, "src/main.py", res.Ops[0].Path)
}

func TestParse_LanguageHintFenceIgnored(t *testing.T) {
	t.Parallel()
	// Plain code fences with language hints produce no ops.
	res := Parse("```python\nprint('loose code')\n```\n```go\nfunc main() {}\n```")

	assert.Empty(t, res.Ops)
	assert.Empty(t, res.Warnings)
}

func TestParse_OrderPreserved(t *testing.T) {
	t.Parallel()
	reply := "```filename: one.py\n1\n```\n```update: two.py\n2\n```\n```read: three.py\n```\n```filename: four.py\n4\n```"

	res := Parse(reply)
	require.Len(t, res.Ops, 4)
	paths := []string{res.Ops[0].Path, res.Ops[1].Path, res.Ops[2].Path, res.Ops[3].Path}
	assert.Equal(t, []string{"one.py", "two.py", "three.py", "four.py"}, paths)
}

func TestParse_UnterminatedFence(t *testing.T) {
	t.Parallel()
	// The closing backticks are missing; the fence runs to end of input.
	res := Parse("```filename: tail.py\nline1\nline2")

	require.Len(t, res.Ops, 1)
	assert.Equal(t, "tail.py", res.Ops[0].Path)
	assert.Equal(t, "line1\nline2", res.Ops[0].Content)
}

func TestParse_DirectiveCaseInsensitive(t *testing.T) {
	t.Parallel()
	res := Parse("```Filename: Mixed.py\ncontent\n```")

	require.Len(t, res.Ops, 1)
	assert.Equal(t, "Mixed.py", res.Ops[0].Path)
}

func TestParse_NoSpaceAfterColon(t *testing.T) {
	t.Parallel()
	res := Parse("```update:main.py\nv\n```")

	require.Len(t, res.Ops, 1)
	assert.Equal(t, KindUpdate, res.Ops[0].Kind)
	assert.Equal(t, "main.py", res.Ops[0].Path)
}

func TestDetectCompletion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"exact phrase", "The project is complete.", true},
		{"case insensitive", "ALL REQUIREMENTS MET, shipping it.", true},
		{"embedded", "I believe the implementation is complete now.", true},
		{"ready for deployment", "This is ready for deployment.", true},
		{"no phrase", "Still working on the parser.", false},
		{"empty", "", false},
		{"near miss", "the project is completely broken", true}, // substring match is deliberate
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectCompletion(tt.reply))
		})
	}
}

func TestParse_NoOpsNoCompletion(t *testing.T) {
	t.Parallel()
	res := Parse("I reviewed the code and everything looks reasonable so far.")

	assert.Empty(t, res.Ops)
	assert.False(t, res.Complete)
}

func TestParse_CompletionAlongsideOps(t *testing.T) {
	t.Parallel()
	res := Parse("```update: done.py\nfinal\n```\nThe project is complete.")

	require.Len(t, res.Ops, 1)
	assert.True(t, res.Complete)
}
