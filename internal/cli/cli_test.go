package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/witness/internal/capture"
	"github.com/soyeahso/witness/internal/config"
	"github.com/soyeahso/witness/internal/domain"
)

// run executes the root command in an isolated WITNESS_HOME.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func witnessHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("WITNESS_HOME", home)
	return home
}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"single", []string{"Accept: application/json"}, map[string]string{"Accept": "application/json"}, false},
		{"value with colon", []string{"X-Time: 12:30"}, map[string]string{"X-Time": "12:30"}, false},
		{"empty value", []string{"X-Empty:"}, map[string]string{"X-Empty": ""}, false},
		{"missing colon", []string{"Accept"}, nil, true},
		{"empty name", []string{": x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHeaders(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBody(t *testing.T) {
	got, err := parseBody("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseBody(`{"n":10000000000000001}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": json.Number("10000000000000001")}, got)

	got, err = parseBody("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)

	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a","b"]`), 0o600))
	got, err = parseBody("@" + path)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got)

	_, err = parseBody("@/nonexistent/body.json")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 8080, parseValue("8080"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "loopback", parseValue("loopback"))
}

func TestExecutorConfig(t *testing.T) {
	h := config.Defaults().HTTP
	retries := 0
	h.RetryMax = &retries
	h.TimeoutMs = 1500

	ec := executorConfig(h)
	assert.Equal(t, 1500*time.Millisecond, ec.Timeout)
	assert.True(t, ec.FollowRedirects)
	assert.Equal(t, 5, ec.MaxRedirects)
	assert.Equal(t, 0, ec.RetryMax)
	assert.Equal(t, 100*time.Millisecond, ec.RetryWaitMin)
	assert.Equal(t, 400*time.Millisecond, ec.RetryWaitMax)
}

func TestSessionFlagHelp(t *testing.T) {
	record := newRecordCmd().Flags().Lookup("session")
	require.NotNil(t, record)
	assert.Contains(t, record.Usage, "session-YYYY-MM-DD")

	replay := newReplayCmd().Flags().Lookup("session")
	require.NotNil(t, replay)
	assert.Contains(t, replay.Usage, "only look for the original in this session")
}

func TestVersionCmd(t *testing.T) {
	witnessHome(t)
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "witness dev")
}

func TestConfigCmd(t *testing.T) {
	home := witnessHome(t)

	out, err := run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml"), strings.TrimSpace(out))

	_, err = run(t, "", "config", "set", "server.port", "9000")
	require.NoError(t, err)

	out, err = run(t, "", "config", "get", "server.port")
	require.NoError(t, err)
	assert.Equal(t, "9000", strings.TrimSpace(out))

	out, err = run(t, "", "config", "get", "server")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 9000")

	_, err = run(t, "", "config", "unset", "server.port")
	require.NoError(t, err)
	_, err = run(t, "", "config", "get", "server.port")
	assert.Error(t, err)

	_, err = run(t, "", "config", "unset", "server.port")
	assert.Error(t, err)
}

func TestStatusCmd(t *testing.T) {
	home := witnessHome(t)

	out, err := run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not found, using defaults")
	assert.Contains(t, out, "Storage: type=file path="+filepath.Join(home, "store"))
	assert.Contains(t, out, "auth=none")
	assert.NotContains(t, out, "Validation issues")

	_, err = run(t, "", "config", "set", "server.bind", "everywhere")
	require.NoError(t, err)
	out, err = run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Validation issues (1)")
	assert.Contains(t, out, "server.bind")
}

func TestInvalidConfigRefusesToRun(t *testing.T) {
	witnessHome(t)
	_, err := run(t, "", "config", "set", "storage.type", "s3")
	require.NoError(t, err)

	_, err = run(t, "", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestRecordInspectListReplay(t *testing.T) {
	home := witnessHome(t)

	var (
		mu   sync.Mutex
		auth []string
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.URL.Path+" "+r.Header.Get("Authorization"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer upstream.Close()

	out, err := run(t, "", "record", upstream.URL, "get", "/api/users",
		"-H", "Authorization: Bearer one", "--tag", "smoke", "--session", "cli")
	require.NoError(t, err)

	var rec capture.RecordResult
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.True(t, strings.HasPrefix(rec.WitnessID, "smoke_GET_api-users_00000000_"))
	assert.Equal(t, "cli", rec.SessionID)
	assert.Equal(t, http.StatusOK, rec.StatusCode)
	assert.True(t, rec.Stored)
	assert.FileExists(t, filepath.Join(home, "store", "sessions", "cli", "interactions", rec.WitnessID+".json"))

	out, err = run(t, "", "inspect", rec.WitnessID)
	require.NoError(t, err)
	var inter domain.Interaction
	require.NoError(t, json.Unmarshal([]byte(out), &inter))
	assert.Equal(t, "Bearer one", inter.Request.Headers["Authorization"])

	out, err = run(t, "", "list", "--session", "cli")
	require.NoError(t, err)
	var list capture.ListResult
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, rec.WitnessID, list.Interactions[0].WitnessID)

	out, err = run(t, "", "replay", rec.WitnessID, upstream.URL, "-H", "Authorization: Bearer two")
	require.NoError(t, err)
	var rep capture.ReplayResult
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, rec.WitnessID, rep.OriginalWitnessID)
	assert.True(t, strings.HasPrefix(rep.ReplayWitnessID, "replay-smoke_GET_api-users_"))

	mu.Lock()
	assert.Equal(t, []string{"/api/users Bearer one", "/api/users Bearer two"}, auth)
	mu.Unlock()

	out, err = run(t, "", "list")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 1, list.Total)
}

func TestInspectNotFound(t *testing.T) {
	witnessHome(t)
	_, err := run(t, "", "inspect", "smoke_GET_api-users_00000000_20260208T1430")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServeStdio(t *testing.T) {
	witnessHome(t)

	in := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
		`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"
	out, err := run(t, in, "serve")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"witness-mcp"`)
	assert.Contains(t, lines[1], `"witness/record"`)
}
