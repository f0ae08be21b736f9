package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"path/filepath"
	"testing"
	"time"

	"depot/internal/depot"
	"depot/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts testutil.ServiceOptions) (*httptest.Server, *testutil.TestService) {
	t.Helper()
	ts := testutil.NewTestService(t, opts)
	srv := httptest.NewServer(NewHandler(ts.Service, discardLogger()).Routes())
	t.Cleanup(srv.Close)
	return srv, ts
}

func upload(t *testing.T, base, owner, repo, filename, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			t.Fatal(err)
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(part, content)
	mw.Close()

	resp, err := http.Post(base+"/repos/"+owner+"/"+repo+"/files", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, want, body)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, testutil.ServiceOptions{})

	resp := get(t, srv.URL+"/healthz")
	wantStatus(t, resp, http.StatusOK)

	var got map[string]string
	decode(t, resp, &got)
	if got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestWorkflow(t *testing.T) {
	srv, ts := newTestServer(t, testutil.ServiceOptions{})
	repoURL := srv.URL + "/repos/alice/notes"

	resp := upload(t, srv.URL, "alice", "notes", "draft.md", "", "# draft")
	wantStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	resp = upload(t, srv.URL, "alice", "notes", "local.txt", "renamed.txt", "body")
	wantStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = get(t, repoURL+"/files")
	wantStatus(t, resp, http.StatusOK)
	var staged map[string][]string
	decode(t, resp, &staged)
	if !reflect.DeepEqual(staged["files"], []string{"draft.md", "renamed.txt"}) {
		t.Fatalf("staged = %v", staged)
	}

	resp = post(t, repoURL+"/commits", `{"message":"first"}`)
	wantStatus(t, resp, http.StatusCreated)
	var c commitJSON
	decode(t, resp, &c)
	if c.Message != "first" || len(c.Files) != 2 {
		t.Fatalf("commit = %+v", c)
	}

	resp = get(t, repoURL+"/commits")
	wantStatus(t, resp, http.StatusOK)
	var commits []commitJSON
	decode(t, resp, &commits)
	if len(commits) != 1 || commits[0].ID != c.ID {
		t.Fatalf("commits = %+v", commits)
	}

	resp = get(t, repoURL+"/commits/"+c.ID)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = post(t, repoURL+"/push", "")
	wantStatus(t, resp, http.StatusOK)
	var pushed syncJSON
	decode(t, resp, &pushed)
	if !reflect.DeepEqual(pushed.Commits, []string{c.ID}) || pushed.Objects != 3 {
		t.Fatalf("push = %+v", pushed)
	}

	resp = get(t, repoURL+"/archive")
	wantStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("Content-Type"); got != "application/zip" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("X-Depot-Commit"); got != c.ID {
		t.Errorf("X-Depot-Commit = %q, want %q", got, c.ID)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if !reflect.DeepEqual(names, []string{"draft.md", "renamed.txt"}) {
		t.Errorf("archive entries = %v", names)
	}

	resp = get(t, repoURL+"/archive?commit="+c.ID)
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = post(t, repoURL+"/revert/"+c.ID, "")
	wantStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	if got := testutil.ReadFile(t, filepath.Join(ts.Layout.UserDir("alice"), "draft.md")); got != "# draft" {
		t.Errorf("reverted draft.md = %q", got)
	}
}

func TestErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t, testutil.ServiceOptions{})
	repoURL := srv.URL + "/repos/alice/notes"

	tests := []struct {
		name     string
		do       func() *http.Response
		want     int
		wantKind string
	}{
		{
			name:     "archive without remote commits",
			do:       func() *http.Response { return get(t, repoURL+"/archive") },
			want:     http.StatusNotFound,
			wantKind: depot.NotFound.String(),
		},
		{
			name:     "unknown commit",
			do:       func() *http.Response { return get(t, repoURL+"/commits/nope") },
			want:     http.StatusNotFound,
			wantKind: depot.NotFound.String(),
		},
		{
			name:     "pull with empty remote",
			do:       func() *http.Response { return post(t, repoURL+"/pull", "") },
			want:     http.StatusNotFound,
			wantKind: depot.NotFound.String(),
		},
		{
			name:     "revert unknown commit",
			do:       func() *http.Response { return post(t, repoURL+"/revert/nope", "") },
			want:     http.StatusNotFound,
			wantKind: depot.NotFound.String(),
		},
		{
			name:     "malformed commit body",
			do:       func() *http.Response { return post(t, repoURL+"/commits", "{") },
			want:     http.StatusBadRequest,
			wantKind: depot.InvalidArgument.String(),
		},
		{
			name: "reserved upload name",
			do: func() *http.Response {
				return upload(t, srv.URL, "alice", "notes", "x", "commit.json", "{}")
			},
			want:     http.StatusBadRequest,
			wantKind: depot.InvalidArgument.String(),
		},
		{
			name: "temp prefix upload name",
			do: func() *http.Response {
				return upload(t, srv.URL, "alice", "notes", "x", ".tmp-report", "draft")
			},
			want:     http.StatusBadRequest,
			wantKind: depot.InvalidArgument.String(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.do()
			wantStatus(t, resp, tt.want)
			var body errorJSON
			decode(t, resp, &body)
			if body.Kind != tt.wantKind || body.Error == "" {
				t.Errorf("body = %+v, want kind %q", body, tt.wantKind)
			}
		})
	}
}

func TestPushPartialFailure(t *testing.T) {
	store := testutil.NewFaultyStore(testutil.NewTestStore())
	srv, ts := newTestServer(t, testutil.ServiceOptions{Store: store})
	ctx := context.Background()

	for _, msg := range []string{"one", "two"} {
		resp := upload(t, srv.URL, "alice", "notes", msg+".txt", "", msg)
		wantStatus(t, resp, http.StatusCreated)
		resp.Body.Close()
		ts.Clock.Advance(time.Minute)
		if _, err := ts.Commit(ctx, "alice", "notes", msg); err != nil {
			t.Fatal(err)
		}
	}
	commits, _ := ts.ListCommits(ctx, "alice", "notes")
	failing := "alice/notes/commits/" + commits[0].ID + "/two.txt"
	store.FailPut(failing)

	resp := post(t, srv.URL+"/repos/alice/notes/push", "")
	wantStatus(t, resp, http.StatusBadGateway)
	var got syncJSON
	decode(t, resp, &got)
	if !reflect.DeepEqual(got.Failed, []string{failing}) || got.Objects == 0 || got.Error == "" {
		t.Errorf("body = %+v", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{depot.E(depot.Op("t"), depot.InvalidArgument), http.StatusBadRequest},
		{depot.E(depot.Op("t"), depot.NotFound), http.StatusNotFound},
		{depot.E(depot.Op("t"), depot.IOError), http.StatusInternalServerError},
		{depot.E(depot.Op("t"), depot.RemoteError), http.StatusBadGateway},
		{depot.E(depot.Op("t"), depot.PartialFailure), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
