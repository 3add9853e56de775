package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/frontmatter"
	"github.com/aidanlsb/kmd/internal/pipeline"
	"github.com/aidanlsb/kmd/internal/store"
)

type result struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *ErrorInfo      `json:"error"`
	Meta  *Meta           `json:"meta"`
}

// execute runs the root command in-process and decodes its JSON output.
func execute(t *testing.T, args ...string) (result, error) {
	t.Helper()
	workspaceName, workspacePathFlag, configPath = "", "", ""
	jsonOutput, debugFlag, showRaw, listArchived = false, false, false, false
	listLimit, historyLimit, initName = 0, 20, ""
	t.Setenv("ANTHROPIC_API_KEY", "")

	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	done := make(chan []byte)
	go func() {
		data, _ := io.ReadAll(r)
		done <- data
	}()

	rootCmd.SetArgs(args)
	runErr := rootCmd.Execute()

	w.Close()
	os.Stdout = stdout
	data := <-done

	var res result
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &res), "output: %s", data)
	return res, runErr
}

func newWorkspace(t *testing.T) (root, conf string) {
	t.Helper()
	root = filepath.Join(t.TempDir(), "ws")
	conf = filepath.Join(t.TempDir(), "config.toml")
	res, err := execute(t, "init", root, "--config", conf, "--json")
	require.NoError(t, err)
	require.True(t, res.OK)
	return root, conf
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func outcomeOf(t *testing.T, res result) pipeline.Outcome {
	t.Helper()
	require.True(t, res.OK, "error: %+v", res.Error)
	var out pipeline.Outcome
	require.NoError(t, json.Unmarshal(res.Data, &out))
	return out
}

func listedOf(t *testing.T, res result) []listedItem {
	t.Helper()
	require.True(t, res.OK, "error: %+v", res.Error)
	var items []listedItem
	require.NoError(t, json.Unmarshal(res.Data, &items))
	return items
}

func TestImportAndRun(t *testing.T) {
	root, conf := newWorkspace(t)
	a := writeFile(t, "alpha.md", "alpha\n")
	b := writeFile(t, "beta.md", "beta\n")

	res, err := execute(t, "import", a, b, "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	imported := outcomeOf(t, res)
	assert.Equal(t, []string{"resources/alpha.resource.md", "resources/beta.resource.md"}, imported.Outputs)

	res, err = execute(t, "run", "concat", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	concat := outcomeOf(t, res)
	require.Len(t, concat.Outputs, 1)
	assert.Equal(t, "concat", concat.Action)

	res, err = execute(t, "selection", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	sel := listedOf(t, res)
	require.Len(t, sel, 1)
	assert.Equal(t, concat.Outputs[0], sel[0].Path)
}

func TestRunUnknownActionReportsCode(t *testing.T) {
	root, conf := newWorkspace(t)
	res, err := execute(t, "run", "nope", "notes", "--workspace-path", root, "--config", conf, "--json")
	require.Error(t, err)
	assert.True(t, IsSilent(err))
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, ErrActionNotFound, res.Error.Code)
}

func TestRunWithNothingSelected(t *testing.T) {
	root, conf := newWorkspace(t)
	res, err := execute(t, "run", "concat", "--workspace-path", root, "--config", conf, "--json")
	require.Error(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, ErrNoSelection, res.Error.Code)
}

func TestSelectByNumber(t *testing.T) {
	root, conf := newWorkspace(t)
	_, err := execute(t, "import", writeFile(t, "one.md", "1\n"), writeFile(t, "two.md", "2\n"),
		"--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)

	res, err := execute(t, "list", "resources", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	listed := listedOf(t, res)
	require.Len(t, listed, 2)

	res, err = execute(t, "select", "2", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	sel := listedOf(t, res)
	require.Len(t, sel, 1)
	assert.Equal(t, listed[1].Path, sel[0].Path)

	res, err = execute(t, "selection", "back", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	assert.Len(t, listedOf(t, res), 2)

	res, err = execute(t, "select", "7", "--workspace-path", root, "--config", conf, "--json")
	require.Error(t, err)
	assert.Equal(t, ErrInvalidInput, res.Error.Code)
}

func TestArchiveAndUnarchive(t *testing.T) {
	root, conf := newWorkspace(t)
	_, err := execute(t, "import", writeFile(t, "draft.md", "draft\n"),
		"--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)

	res, err := execute(t, "archive", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	archived := outcomeOf(t, res)
	assert.Equal(t, []string{".archive/resources/draft.resource.md"}, archived.Archived)

	res, err = execute(t, "list", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	assert.Empty(t, listedOf(t, res))

	res, err = execute(t, "unarchive", ".archive/resources/draft.resource.md",
		"--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	assert.Equal(t, []string{"resources/draft.resource.md"}, outcomeOf(t, res).Outputs)

	res, err = execute(t, "history", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Meta.Count)
}

func TestNamedWorkspace(t *testing.T) {
	root := filepath.Join(t.TempDir(), "named")
	conf := filepath.Join(t.TempDir(), "config.toml")
	res, err := execute(t, "init", root, "--name", "research", "--config", conf, "--json")
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = execute(t, "workspaces", "--config", conf, "--json")
	require.NoError(t, err)
	var infos []workspaceInfo
	require.NoError(t, json.Unmarshal(res.Data, &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "research", infos[0].Name)
	assert.True(t, infos[0].Default)

	res, err = execute(t, "selection", "-w", "research", "--config", conf, "--json")
	require.NoError(t, err)
	assert.True(t, res.OK)

	res, err = execute(t, "selection", "-w", "missing", "--config", conf, "--json")
	require.Error(t, err)
	assert.Equal(t, ErrWorkspaceNotSpecified, res.Error.Code)
}

func TestReindexCounts(t *testing.T) {
	root, conf := newWorkspace(t)
	_, err := execute(t, "import", writeFile(t, "x.md", "x\n"), "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)

	res, err := execute(t, "reindex", "--workspace-path", root, "--config", conf, "--json")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Meta.Count)
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", action.ErrUnknownAction), ErrActionNotFound},
		{fmt.Errorf("x: %w", action.ErrPreconditionFailed), ErrPreconditionFailed},
		{fmt.Errorf("x: %w", frontmatter.ErrEmptyFile), ErrFileEmpty},
		{fmt.Errorf("x: %w", store.ErrSlugCollision), ErrSlugCollision},
		{fmt.Errorf("x: %w", os.ErrNotExist), ErrItemNotFound},
		{fmt.Errorf("something else"), ErrInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, codeFor(tc.err, ErrInternal), tc.err.Error())
	}
}
