package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alfredjeanlab/flowstudio/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockDestination records calls to Write.
type mockDestination struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, bytes.Clone(data))
	return d.err
}

func (d *mockDestination) String() string { return "mock" }

type fakeRenderer struct {
	data   []byte
	err    error
	format string
}

func (r *fakeRenderer) ExportWorkflow(_ context.Context, _ model.Graph, format string) ([]byte, error) {
	r.format = format
	return r.data, r.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExporter_FanOut(t *testing.T) {
	artifact := []byte("name: demo\nnodes: []\n")
	r := &fakeRenderer{data: artifact}
	d1, d2 := &mockDestination{}, &mockDestination{}

	got, err := NewExporter(r, []Destination{d1, d2}, quietLogger()).Export(context.Background(), model.Graph{}, FormatYAML)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if r.format != "yaml" {
		t.Errorf("format = %q, want yaml", r.format)
	}
	if string(got) != string(artifact) {
		t.Errorf("artifact = %q", got)
	}
	for i, d := range []*mockDestination{d1, d2} {
		if len(d.writes) != 1 || string(d.writes[0]) != string(artifact) {
			t.Errorf("destination %d writes = %q", i, d.writes)
		}
	}
}

func TestExporter_DestinationFailureContinues(t *testing.T) {
	r := &fakeRenderer{data: []byte(`{"nodes":[]}`)}
	bad := &mockDestination{err: errors.New("disk full")}
	good := &mockDestination{}

	_, err := NewExporter(r, []Destination{bad, good}, quietLogger()).Export(context.Background(), model.Graph{}, FormatJSON)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want disk full", err)
	}
	if len(good.writes) != 1 {
		t.Errorf("good destination writes = %d, want 1", len(good.writes))
	}
}

func TestExporter_RendererFailure(t *testing.T) {
	r := &fakeRenderer{err: errors.New("Workflow is empty.")}
	d := &mockDestination{}

	_, err := NewExporter(r, []Destination{d}, quietLogger()).Export(context.Background(), model.Graph{}, FormatYAML)
	if err == nil || !strings.Contains(err.Error(), "Workflow is empty.") {
		t.Fatalf("err = %v", err)
	}
	if len(d.writes) != 0 {
		t.Error("nothing should be written when rendering fails")
	}
}

func TestCheckArtifact(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  string
		wantErr bool
	}{
		{"yaml", "a: 1\nb: [x, y]\n", FormatYAML, false},
		{"bad yaml", "a: [1, 2\n", FormatYAML, true},
		{"json", `{"a":1}`, FormatJSON, false},
		{"bad json", `{"a":`, FormatJSON, true},
		{"empty", "  \n", FormatYAML, true},
		{"unknown format", "anything", "python", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckArtifact([]byte(tt.data), tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckArtifact() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		raw, bucket, key string
		wantErr          bool
	}{
		{raw: "s3://flows/prod/studio.yaml", bucket: "flows", key: "prod/studio.yaml"},
		{raw: "s3://flows/a.yaml", bucket: "flows", key: "a.yaml"},
		{raw: "s3://flows", wantErr: true},
		{raw: "s3://flows/dir/", wantErr: true},
		{raw: "s3:///key", wantErr: true},
		{raw: "http://flows/key", wantErr: true},
	}
	for _, tt := range tests {
		bucket, key, err := ParseS3URL(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseS3URL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("ParseS3URL(%q) = %q, %q", tt.raw, bucket, key)
		}
	}
}

func TestParseDestination(t *testing.T) {
	ctx := context.Background()

	d, err := ParseDestination(ctx, "out/workflow.yaml", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*FileDestination); !ok {
		t.Errorf("plain path: got %T", d)
	}

	d, err = ParseDestination(ctx, "-", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.String() != "stdout" {
		t.Errorf("dash: got %s", d)
	}

	d, err = ParseDestination(ctx, "flows/a.yaml", Options{GitRepo: "/tmp/repo"})
	if err != nil {
		t.Fatal(err)
	}
	if d.String() != "/tmp/repo:flows/a.yaml@main" {
		t.Errorf("git: got %s", d)
	}

	if _, err := ParseDestination(ctx, "", Options{}); err == nil {
		t.Error("empty target: expected error")
	}
	if _, err := ParseDestination(ctx, "s3://bucket", Options{}); err == nil {
		t.Error("bad s3 url: expected error")
	}
}

func TestFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "workflow.yaml")
	d := NewFileDestination(path)

	for _, content := range []string{"first\n", "second\n"} {
		if err := d.Write(context.Background(), []byte(content)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != content {
			t.Errorf("content = %q, want %q", got, content)
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriterDestination(t *testing.T) {
	var buf bytes.Buffer
	d := &WriterDestination{W: &buf, Name: "buffer"}
	if err := d.Write(context.Background(), []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hello" {
		t.Errorf("got %q", buf.String())
	}
}

func TestContentType(t *testing.T) {
	for ext, want := range map[string]string{
		".yaml": "application/yaml",
		".yml":  "application/yaml",
		".json": "application/json",
		".py":   "text/plain; charset=utf-8",
	} {
		if got := ContentType(ext); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestS3Destination(t *testing.T) {
	var (
		mu          sync.Mutex
		method      string
		path        string
		contentType string
		format      string
		body        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		format = r.Header.Get("X-Amz-Meta-Workflow-Format")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_REQUEST_CHECKSUM_CALCULATION", "when_required")

	d, err := ParseDestination(context.Background(), "s3://flows/prod/workflow.yaml",
		Options{S3Region: "us-east-1", S3Endpoint: srv.URL, Format: FormatYAML})
	if err != nil {
		t.Fatalf("ParseDestination: %v", err)
	}
	if d.String() != "s3://flows/prod/workflow.yaml" {
		t.Errorf("String() = %s", d)
	}
	if err := d.Write(context.Background(), []byte("name: demo\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/flows/prod/workflow.yaml" {
		t.Errorf("path = %s, want path-style /flows/prod/workflow.yaml", path)
	}
	if contentType != "application/yaml" {
		t.Errorf("content type = %q", contentType)
	}
	if format != FormatYAML {
		t.Errorf("format metadata = %q", format)
	}
	if !strings.Contains(string(body), "name: demo") {
		t.Errorf("body = %q", body)
	}
}

// fakePutter records PutObject calls.
type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (p *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	p.inputs = append(p.inputs, in)
	p.bodies = append(p.bodies, string(b))
	return &s3.PutObjectOutput{}, p.err
}

func TestS3Destination_PutObject(t *testing.T) {
	p := &fakePutter{}
	d := NewS3Destination(p, "flows", "team/support.json")
	if err := d.Write(context.Background(), []byte(`{"name":"support"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(p.inputs) != 1 {
		t.Fatalf("PutObject calls = %d, want 1", len(p.inputs))
	}
	in := p.inputs[0]
	if aws.ToString(in.Bucket) != "flows" || aws.ToString(in.Key) != "team/support.json" {
		t.Errorf("object = %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != "application/json" {
		t.Errorf("content type = %q", aws.ToString(in.ContentType))
	}
	if aws.ToInt64(in.ContentLength) != int64(len(p.bodies[0])) {
		t.Errorf("content length = %d, body %d bytes", aws.ToInt64(in.ContentLength), len(p.bodies[0]))
	}
	if aws.ToString(in.CacheControl) != "no-cache" {
		t.Errorf("cache control = %q", aws.ToString(in.CacheControl))
	}
	if in.Metadata != nil {
		t.Errorf("metadata without a format: %v", in.Metadata)
	}
}

func TestS3Destination_Error(t *testing.T) {
	p := &fakePutter{err: errors.New("access denied")}
	err := NewS3Destination(p, "flows", "a.yaml").Write(context.Background(), []byte("a: 1\n"))
	if err == nil || !strings.Contains(err.Error(), "uploading s3://flows/a.yaml") || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("err = %v", err)
	}
}

func TestParseDestinations_SharesS3Client(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	dests, err := ParseDestinations(context.Background(),
		[]string{"s3://flows/a.yaml", "out.yaml", "s3://backup/a.yaml"},
		Options{S3Region: "us-east-1", Format: FormatYAML})
	if err != nil {
		t.Fatalf("ParseDestinations: %v", err)
	}
	if len(dests) != 3 {
		t.Fatalf("got %d destinations", len(dests))
	}
	first, ok1 := dests[0].(*S3Destination)
	second, ok2 := dests[2].(*S3Destination)
	if !ok1 || !ok2 {
		t.Fatalf("got %T and %T", dests[0], dests[2])
	}
	if first.client != second.client {
		t.Error("S3 destinations should share one client")
	}
	if first.format != FormatYAML {
		t.Errorf("format = %q", first.format)
	}
	if _, ok := dests[1].(*FileDestination); !ok {
		t.Errorf("plain path: got %T", dests[1])
	}

	if _, err := ParseDestinations(context.Background(), []string{"out.yaml", ""}, Options{}); err == nil {
		t.Error("empty target: expected error")
	}
}

func TestGitDestination(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir := t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir := filepath.Join(workDir, "repo")

	run(t, repoDir, "git", "config", "user.email", "test@test.com")
	run(t, repoDir, "git", "config", "user.name", "Test")
	run(t, repoDir, "git", "branch", "-m", "main")

	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")

	dest := NewGitDestination(repoDir, "workflows/studio.yaml", "main")

	data1 := []byte("name: one\n")
	if err := dest.Write(context.Background(), data1); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repoDir, "workflows", "studio.yaml"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data1) {
		t.Fatalf("file content mismatch: got %q", got)
	}

	// Same content commits nothing.
	if err := dest.Write(context.Background(), data1); err != nil {
		t.Fatalf("second write (no-op): %v", err)
	}
	if n := strings.TrimSpace(output(t, repoDir, "git", "rev-list", "--count", "HEAD")); n != "2" {
		t.Errorf("commit count = %s, want 2", n)
	}

	if err := dest.Write(context.Background(), []byte("name: two\n")); err != nil {
		t.Fatalf("third write: %v", err)
	}
	if n := strings.TrimSpace(output(t, remoteDir, "git", "rev-list", "--count", "main")); n != "3" {
		t.Errorf("remote commit count = %s, want 3", n)
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	output(t, dir, name, args...)
}

func output(t *testing.T, dir string, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
	return string(out)
}
