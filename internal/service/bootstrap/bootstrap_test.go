package bootstrap

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"chatbot_server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCommand struct {
	Dir  string
	Name string
	Args []string
}

type fakeCommands struct {
	mu    sync.Mutex
	calls []recordedCommand
	err   error
}

func (f *fakeCommands) Run(_ context.Context, dir, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCommand{Dir: dir, Name: name, Args: args})
	return f.err
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// newRoot 准备一个带模板文件的工作目录
func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	template, err := os.ReadFile("../../../config/default_data.json")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config", "default_data.json"), template, 0o644))
	return root
}

func corpusServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	archives := map[string][]byte{
		"punkt":   zipArchive(t, map[string]string{"punkt/README": "corpus punkt"}),
		"wordnet": zipArchive(t, map[string]string{"wordnet/README": "corpus wordnet"}),
	}
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		archive, ok := archives[strings.TrimSuffix(filepath.Base(r.URL.Path), ".zip")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func Test_Setup_Runs_Every_Step(t *testing.T) {
	root := newRoot(t)
	srv, paths := corpusServer(t)
	conf := config.Default()
	conf.BootstrapConfig.CorpusBaseUrl = srv.URL + "/packages"

	commands := &fakeCommands{}
	var out bytes.Buffer
	results, err := NewSetup(conf, Options{Root: root, Out: &out, Commands: commands}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, StatusCompleted, r.Status, r.Name)
	}

	require.Len(t, commands.calls, 2)
	assert.Equal(t, recordedCommand{Dir: root, Name: "python3", Args: []string{"-m", "venv", "venv"}}, commands.calls[0])
	assert.Equal(t, recordedCommand{
		Dir:  root,
		Name: filepath.Join(root, "venv", "bin", "pip"),
		Args: []string{"install", "-r", "requirements.txt"},
	}, commands.calls[1])

	for _, dir := range []string{"backend/data", "backend/logs", "backend/models", "tests/fixtures"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}

	assert.ElementsMatch(t, []string{"/packages/tokenizers/punkt.zip", "/packages/corpora/wordnet.zip"}, *paths)
	// 默认下载到虚拟环境的 sys.prefix/nltk_data，NLTK 无需额外配置即可找到
	assert.FileExists(t, filepath.Join(root, "venv", "nltk_data", "tokenizers", "punkt.zip"))
	readme, err := os.ReadFile(filepath.Join(root, "venv", "nltk_data", "corpora", "wordnet", "README"))
	require.NoError(t, err)
	assert.Equal(t, "corpus wordnet", string(readme))

	template, err := os.ReadFile(filepath.Join(root, "config", "default_data.json"))
	require.NoError(t, err)
	seeded, err := os.ReadFile(filepath.Join(root, "backend", "data", "chatbot_data.json"))
	require.NoError(t, err)
	assert.Equal(t, template, seeded)

	console := out.String()
	assert.Contains(t, console, "📦 Creating directories...")
	assert.Contains(t, console, "✅ Seeding chatbot data completed successfully")
	assert.Contains(t, console, "customer_support")
	assert.Contains(t, console, "🎯 Setup completed!")
	assert.NotContains(t, console, "NLTK_DATA")
}

func Test_Setup_Custom_Corpus_Dir_Prints_Nltk_Data_Hint(t *testing.T) {
	root := newRoot(t)
	srv, _ := corpusServer(t)
	conf := config.Default()
	conf.BootstrapConfig.CorpusBaseUrl = srv.URL + "/packages"
	conf.BootstrapConfig.CorpusDir = "shared/nltk"

	var out bytes.Buffer
	_, err := NewSetup(conf, Options{Root: root, Out: &out, Commands: &fakeCommands{}}).Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "shared", "nltk", "tokenizers", "punkt.zip"))
	assert.NoDirExists(t, filepath.Join(root, "venv", "nltk_data"))
	assert.Contains(t, out.String(), "export NLTK_DATA="+filepath.Join(root, "shared", "nltk"))
}

func Test_Setup_Relative_Root_Uses_Absolute_Pip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script pip")
	}
	t.Chdir(t.TempDir())
	pip := filepath.Join("proj", "venv", "bin", "pip")
	require.NoError(t, os.MkdirAll(filepath.Dir(pip), 0o755))
	require.NoError(t, os.WriteFile(pip, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("proj", "requirements.txt"), nil, 0o644))

	commands := &fakeCommands{}
	setup := NewSetup(config.Default(), Options{Root: "proj", Out: &bytes.Buffer{}, Commands: commands})
	require.NoError(t, setup.installRequirements(context.Background()))
	require.Len(t, commands.calls, 1)
	assert.True(t, filepath.IsAbs(commands.calls[0].Name), commands.calls[0].Name)

	// 真实执行：命令目录为 proj，pip 路径不能再相对于 proj 解析
	setup = NewSetup(config.Default(), Options{Root: "proj", Out: &bytes.Buffer{}, Commands: ExecRunner{}})
	assert.NoError(t, setup.installRequirements(context.Background()))
}

func Test_Setup_Skips_Python_And_Corpora(t *testing.T) {
	root := newRoot(t)
	commands := &fakeCommands{}
	var out bytes.Buffer
	results, err := NewSetup(config.Default(), Options{
		Root:        root,
		Out:         &out,
		Commands:    commands,
		SkipPython:  true,
		SkipCorpora: true,
	}).Run(context.Background())
	require.NoError(t, err)

	statuses := map[string]Status{}
	for _, r := range results {
		statuses[r.Name] = r.Status
	}
	assert.Equal(t, map[string]Status{
		StepVenv:         StatusSkipped,
		StepRequirements: StatusSkipped,
		StepDirectories:  StatusCompleted,
		StepCorpora:      StatusSkipped,
		StepSeed:         StatusCompleted,
	}, statuses)
	assert.Empty(t, commands.calls)
	assert.Contains(t, out.String(), "skipped")
	assert.FileExists(t, filepath.Join(root, "backend", "data", "chatbot_data.json"))
}

func Test_Setup_Seed_Overwrites_Existing_File(t *testing.T) {
	root := newRoot(t)
	dataFile := filepath.Join(root, "backend", "data", "chatbot_data.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(dataFile), 0o755))
	require.NoError(t, os.WriteFile(dataFile, []byte(`{"applications":{}}`), 0o644))

	_, err := NewSetup(config.Default(), Options{Root: root, Out: &bytes.Buffer{}, SkipPython: true, SkipCorpora: true}).Run(context.Background())
	require.NoError(t, err)

	template, err := os.ReadFile(filepath.Join(root, "config", "default_data.json"))
	require.NoError(t, err)
	seeded, err := os.ReadFile(dataFile)
	require.NoError(t, err)
	assert.Equal(t, template, seeded)
}

func Test_Setup_Stops_At_First_Failure(t *testing.T) {
	root := newRoot(t)
	commands := &fakeCommands{err: errors.New("python3: not found")}
	var out bytes.Buffer
	results, err := NewSetup(config.Default(), Options{Root: root, Out: &out, Commands: commands}).Run(context.Background())
	require.ErrorIs(t, err, ErrStepFailed)
	assert.Contains(t, err.Error(), "python3: not found")

	require.Len(t, results, 1)
	assert.Equal(t, StepVenv, results[0].Name)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Len(t, commands.calls, 1)
	assert.Contains(t, out.String(), "❌ Creating virtual environment failed")
	assert.NoDirExists(t, filepath.Join(root, "backend", "data"))
}

func Test_Setup_Missing_Template_Fails(t *testing.T) {
	root := t.TempDir()
	_, err := NewSetup(config.Default(), Options{Root: root, Out: &bytes.Buffer{}, SkipPython: true, SkipCorpora: true}).Run(context.Background())
	require.ErrorIs(t, err, ErrStepFailed)
	assert.Contains(t, err.Error(), StepSeed)
}

func Test_Corpus_Download_Error_Status(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := &CorpusDownloader{BaseUrl: srv.URL, Dir: t.TempDir()}
	err := d.Fetch(context.Background(), "corpora/wordnet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func Test_Corpus_Rejects_Bad_Name(t *testing.T) {
	d := &CorpusDownloader{BaseUrl: "http://127.0.0.1:0", Dir: t.TempDir()}
	require.Error(t, d.Fetch(context.Background(), "wordnet"))
}

func Test_Extract_Rejects_Path_Traversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(archive, zipArchive(t, map[string]string{"../escape.txt": "x"}), 0o644))

	_, err := extract(archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func Test_Runner_Honours_Cancelled_Context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	runner := &Runner{Out: &bytes.Buffer{}, Steps: []Step{{Name: "x", Description: "x", Run: func(context.Context) error {
		ran = true
		return nil
	}}}}
	_, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func Test_Corpus_Rejects_Non_Zip_Payload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>rate limited</body></html>"))
	}))
	defer srv.Close()

	d := &CorpusDownloader{BaseUrl: srv.URL, Dir: t.TempDir()}
	err := d.Fetch(context.Background(), "tokenizers/punkt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application/zip")
}
