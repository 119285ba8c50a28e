package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambiyansyah-risyal/captionkit"
	"github.com/ambiyansyah-risyal/captionkit/internal/fakeapi"
)

type cliTestEnv struct {
	api *fakeapi.Server
	url string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	api := fakeapi.New()
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	for _, name := range []string{"TIMEOUT", "RETRIES", "RETRY_DELAY", "CACHE_DB", "REDIS_URL", "REDIS_PREFIX", "LOG_LEVEL", "LANG", "TOKEN", "PASSWORD"} {
		t.Setenv("CAPTION_"+name, "")
		os.Unsetenv("CAPTION_" + name)
	}
	t.Setenv("CAPTION_API_URL", ts.URL)
	t.Setenv("CAPTION_RETRY_DELAY", "1ms")
	t.Chdir(t.TempDir())

	return &cliTestEnv{api: api, url: ts.URL}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd, state := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := run(context.Background(), cmd, state)
	return stdout.String(), stderr.String(), err
}

func writeMedia(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff\xe0"), 0o600))
	return path
}

func TestStatusCommand(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, "status")
	require.NoError(t, err)

	var status captionkit.APIStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "running", status.Status)
}

func TestVersionSkipsConfig(t *testing.T) {
	setupCLITestEnv(t)
	t.Setenv("CAPTION_TIMEOUT", "never")

	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, captionkit.Version)

	out, _, err = runCLI(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
}

func TestInvalidConfig(t *testing.T) {
	setupCLITestEnv(t)
	t.Setenv("CAPTION_RETRIES", "-2")

	_, _, err := runCLI(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAPTION_RETRIES")
}

func TestAPIFlagOverridesEnv(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("CAPTION_API_URL", "http://127.0.0.1:1")

	_, _, err := runCLI(t, "--api", env.url, "status")
	require.NoError(t, err)
	assert.Equal(t, 1, env.api.Calls(http.MethodGet, "/"))
}

func TestMusiciansCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "musicians")
	require.NoError(t, err)

	var list captionkit.MusicianList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, 1, env.api.Calls(http.MethodGet, captionkit.EndpointMusicians))
}

func TestLoginAndAuthenticatedCommands(t *testing.T) {
	setupCLITestEnv(t)

	_, _, err := runCLI(t, "me")
	require.Error(t, err)
	assert.True(t, captionkit.IsKind(err, captionkit.KindUnauthorized))

	out, _, err := runCLI(t, "login", "-u", fakeapi.DefaultUser, "-p", fakeapi.DefaultPassword)
	require.NoError(t, err)
	token := string(bytes.TrimSpace([]byte(out)))
	require.NotEmpty(t, token)

	t.Setenv("CAPTION_TOKEN", token)
	out, _, err = runCLI(t, "me")
	require.NoError(t, err)
	assert.Contains(t, out, fakeapi.DefaultUser)

	out, _, err = runCLI(t, "venues", "add", "--name", "Sunset", "--city", "Paris", "--type", "club")
	require.NoError(t, err)
	assert.Contains(t, out, `"Sunset"`)

	_, _, err = runCLI(t, "analytics")
	require.NoError(t, err)
}

func TestLoginRequiresCredentials(t *testing.T) {
	setupCLITestEnv(t)

	_, _, err := runCLI(t, "login", "-u", "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestGenerateCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeMedia(t, "gig.jpg")

	out, _, err := runCLI(t, "generate", path, "-m", "Ana", "-m", "Bo", "--venue", "Sunset", "--style", "blues")
	require.NoError(t, err)

	var result captionkit.AnalyzeAndGenerateResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "gig.jpg", result.Filename)
	assert.Contains(t, result.Caption, "Ana, Bo")
	assert.Contains(t, result.Caption, "Sunset")
	assert.Equal(t, 1, env.api.Calls(http.MethodPost, captionkit.EndpointAnalyzeAndGenerate))
}

func TestAnalyzeRejectsUnsupportedMedia(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeMedia(t, "notes.txt")

	_, _, err := runCLI(t, "analyze", path)
	require.ErrorIs(t, err, captionkit.ErrUnsupportedMedia)
	assert.Equal(t, 0, env.api.TotalCalls())
}

func TestCaptionCommand(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, "caption", "--style", "funk", "--venue", "Sunset")
	require.NoError(t, err)

	var caption captionkit.Caption
	require.NoError(t, json.Unmarshal([]byte(out), &caption))
	assert.Contains(t, caption.Caption, "funk")
}

func TestBatchCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	good := writeMedia(t, "a.jpg")
	other := writeMedia(t, "b.jpg")
	bad := writeMedia(t, "c.txt")

	out, _, err := runCLI(t, "batch", good, bad, other, "-j", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files failed")

	var lines []batchLine
	require.NoError(t, json.Unmarshal([]byte(out), &lines))
	require.Len(t, lines, 3)
	assert.Equal(t, "a.jpg", lines[0].Name)
	assert.NotEmpty(t, lines[1].Error)
	assert.Equal(t, "b.jpg", lines[2].Name)
	assert.NotNil(t, lines[2].Result)
	assert.Equal(t, 2, env.api.Calls(http.MethodPost, captionkit.EndpointAnalyzeAndGenerate))
}

func TestTemplatesCommands(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, "templates", "--category", "studio")
	require.NoError(t, err)
	var list []captionkit.Template
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].ID)

	out, _, err = runCLI(t, "templates", "render", "2", "--var", "musician=Ana")
	require.NoError(t, err)
	assert.Contains(t, out, "studio")

	_, _, err = runCLI(t, "templates", "render", "99")
	assert.ErrorIs(t, err, captionkit.ErrNotFound)
}

func TestSQLiteCacheAcrossRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("CAPTION_CACHE_DB", filepath.Join(t.TempDir(), "cache.db"))

	for i := 0; i < 2; i++ {
		_, _, err := runCLI(t, "venues")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.api.Calls(http.MethodGet, captionkit.EndpointVenues), "second run is served from the cache file")

	_, _, err := runCLI(t, "venues", "--no-cache")
	require.NoError(t, err)
	assert.Equal(t, 2, env.api.Calls(http.MethodGet, captionkit.EndpointVenues))

	out, _, err := runCLI(t, "cache", "clear", "/venues")
	require.NoError(t, err)
	assert.Contains(t, out, `"/venues"`)

	_, _, err = runCLI(t, "venues")
	require.NoError(t, err)
	assert.Equal(t, 3, env.api.Calls(http.MethodGet, captionkit.EndpointVenues))
}

func TestRedisCache(t *testing.T) {
	env := setupCLITestEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("CAPTION_REDIS_URL", "redis://"+mr.Addr())

	for i := 0; i < 2; i++ {
		_, _, err := runCLI(t, "musicians")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.api.Calls(http.MethodGet, captionkit.EndpointMusicians))
	assert.NotEmpty(t, mr.Keys())

	_, _, err := runCLI(t, "cache", "clear")
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Name"}, [][]string{{"1", "Ana"}, {"2"}}, []columnAlignment{alignRight})

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Ana")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestFailingCommandReleasesResources(t *testing.T) {
	setupCLITestEnv(t)
	t.Setenv("CAPTION_CACHE_DB", filepath.Join(t.TempDir(), "cache.db"))

	cmd, state := newRootCommand()
	closed := 0
	state.closers = append(state.closers, func() error {
		closed++
		return nil
	})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"me"})

	err := run(context.Background(), cmd, state)
	require.Error(t, err)
	assert.True(t, captionkit.IsKind(err, captionkit.KindUnauthorized))
	assert.Equal(t, 1, closed)
	assert.Empty(t, state.closers, "the sqlite store opened by the command is closed too")
}

func TestAIOptionsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "ai", "options")
	require.NoError(t, err)

	var options captionkit.AvailableOptions
	require.NoError(t, json.Unmarshal([]byte(out), &options))
	assert.Len(t, options.Styles, 6)
	assert.Equal(t, 1, env.api.Calls(http.MethodGet, captionkit.EndpointAIAvailableOptions))
}

func TestAIProCommand(t *testing.T) {
	setupCLITestEnv(t)
	path := writeMedia(t, "gig.jpg")

	out, _, err := runCLI(t, "ai", "pro", path, "--analysis-model", fakeapi.ModelClaudeHaiku, "--style", "minimal", "--language", "en", "--no-save")
	require.NoError(t, err)

	var result captionkit.ProResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, fakeapi.ModelClaudeHaiku, result.ModelsUsed.Analysis)
	assert.Equal(t, "minimal", result.Style)
	assert.False(t, result.SavedToDB)

	_, _, err = runCLI(t, "ai", "pro", path, "--style", "baroque")
	require.Error(t, err)
	assert.True(t, captionkit.IsKind(err, captionkit.KindUnknown))
}

func TestAICompareCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeMedia(t, "gig.jpg")

	out, _, err := runCLI(t, "ai", "compare", path, "--model", fakeapi.ModelClaudeSonnet, "--model", fakeapi.ModelGPT4)
	require.NoError(t, err)

	var result captionkit.ModelComparison
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{fakeapi.ModelClaudeSonnet, fakeapi.ModelGPT4}, result.ModelsCompared)
	assert.NotEmpty(t, result.Comparisons[fakeapi.ModelGPT4].Error)
	assert.Equal(t, 1, env.api.Calls(http.MethodGet, captionkit.EndpointAICompareModels))
}
