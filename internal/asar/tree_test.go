package asar

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTreeFrom(t *testing.T, header string, dataLen int) (*Tree, error) {
	t.Helper()

	raw := buildArchive(t, header, make([]byte, dataLen))
	hdr, err := DecodeHeader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	return BuildTree(hdr, int64(len(raw)))
}

func TestBuildTreeShapes(t *testing.T) {
	t.Parallel()

	header := `{"files":{
		"bin":{"files":{
			"tool":{"size":3,"offset":"0","executable":true}
		}},
		"readme.txt":{"size":5,"offset":3},
		"latest":{"link":"readme.txt"}
	}}`
	tree, err := buildTreeFrom(t, header, 8)
	require.NoError(t, err)

	binDir, ok := tree.Root.Child("bin")
	require.True(t, ok)
	require.Equal(t, KindDirectory, binDir.Kind())

	tool, ok := binDir.(*Directory).Child("tool")
	require.True(t, ok)
	f := tool.(*File)
	assert.Equal(t, uint64(3), f.Size)
	assert.Equal(t, uint64(0), f.Offset)
	assert.True(t, f.Executable)
	assert.False(t, f.Unpacked)

	readme, ok := tree.Root.Child("readme.txt")
	require.True(t, ok)
	rf := readme.(*File)
	assert.Equal(t, uint64(5), rf.Size)
	assert.Equal(t, uint64(3), rf.Offset)

	latest, ok := tree.Root.Child("latest")
	require.True(t, ok)
	assert.Equal(t, "readme.txt", latest.(*Symlink).Target)
}

func TestBuildTreeOrderPreserved(t *testing.T) {
	t.Parallel()

	header := `{"files":{
		"zebra":{"size":0,"offset":0},
		"apple":{"size":0,"offset":0},
		"mango":{"size":0,"offset":0}
	}}`
	tree, err := buildTreeFrom(t, header, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "apple", "mango"}, tree.Root.Names())
}

func TestBuildTreeBadOffsets(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"negative number": `{"files":{"f":{"size":1,"offset":-1}}}`,
		"negative string": `{"files":{"f":{"size":1,"offset":"-1"}}}`,
		"non-numeric":     `{"files":{"f":{"size":1,"offset":"abc"}}}`,
		"fractional":      `{"files":{"f":{"size":1.5,"offset":0}}}`,
		"missing offset":  `{"files":{"f":{"size":1}}}`,
		"wrong type":      `{"files":{"f":{"size":1,"offset":true}}}`,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := buildTreeFrom(t, header, 16)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestBuildTreeRangeExceedsDataRegion(t *testing.T) {
	t.Parallel()

	_, err := buildTreeFrom(t, `{"files":{"f":{"size":100,"offset":"0"}}}`, 10)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestBuildTreeOverflowingRange(t *testing.T) {
	t.Parallel()

	header := fmt.Sprintf(`{"files":{"f":{"size":%d,"offset":"%d"}}}`,
		uint64(1<<63), uint64(1<<63)+100)
	_, err := buildTreeFrom(t, header, 10)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestBuildTreeUnpackedIgnoresBounds(t *testing.T) {
	t.Parallel()

	tree, err := buildTreeFrom(t, `{"files":{"f":{"size":100,"offset":"9999","unpacked":true}}}`, 0)
	require.NoError(t, err)
	f, _ := tree.Root.Child("f")
	assert.True(t, f.(*File).Unpacked)
}

func TestBuildTreeUnsafeNames(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"traversal":  `{"files":{"../evil":{"size":0,"offset":0}}}`,
		"parent ref": `{"files":{"..":{"files":{}}}}`,
		"self ref":   `{"files":{".":{"files":{}}}}`,
		"slash":      `{"files":{"a/b":{"size":0,"offset":0}}}`,
		"backslash":  `{"files":{"a\\b":{"size":0,"offset":0}}}`,
		"empty":      `{"files":{"":{"size":0,"offset":0}}}`,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := buildTreeFrom(t, header, 0)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestBuildTreeDuplicateNames(t *testing.T) {
	t.Parallel()

	_, err := buildTreeFrom(t, `{"files":{"a":{"size":0,"offset":0},"a":{"size":0,"offset":0}}}`, 0)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestBuildTreeUnknownShape(t *testing.T) {
	t.Parallel()

	_, err := buildTreeFrom(t, `{"files":{"mystery":{"frobs":1}}}`, 0)
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestBuildTreeBadIntegrity(t *testing.T) {
	t.Parallel()

	goodHash := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	cases := map[string]string{
		"short hash": `{"files":{"f":{"size":0,"offset":0,"integrity":{
			"algorithm":"SHA256","hash":"abcd","blockSize":4096,"blocks":[]}}}}`,
		"bad algorithm": fmt.Sprintf(`{"files":{"f":{"size":0,"offset":0,"integrity":{
			"algorithm":"MD5","hash":"%s","blockSize":4096,"blocks":[]}}}}`, goodHash),
		"zero blockSize": fmt.Sprintf(`{"files":{"f":{"size":0,"offset":0,"integrity":{
			"algorithm":"SHA256","hash":"%s","blockSize":0,"blocks":[]}}}}`, goodHash),
		"block count mismatch": fmt.Sprintf(`{"files":{"f":{"size":10,"offset":0,"integrity":{
			"algorithm":"SHA256","hash":"%s","blockSize":4,"blocks":["%s"]}}}}`, goodHash, goodHash),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := buildTreeFrom(t, header, 16)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestBuildTreeDeterministic(t *testing.T) {
	t.Parallel()

	header := `{"files":{"a":{"files":{"b":{"size":2,"offset":"1"}}},"c":{"link":"a"}}}`
	t1, err := buildTreeFrom(t, header, 4)
	require.NoError(t, err)
	t2, err := buildTreeFrom(t, header, 4)
	require.NoError(t, err)
	assert.Equal(t, t1.Root, t2.Root)
}
