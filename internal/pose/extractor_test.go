package pose

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExtractorBuildsArgsAndResolvesPaths(t *testing.T) {
	var gotBinary string
	var gotArgs []string
	e := NewExtractor("motionlab-pose", []string{"--model", "lite"}, time.Second)
	e.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatalf("expected extractor context to carry a deadline")
		}
		gotBinary = binary
		gotArgs = args
		return []byte(`{"bvh_files":["person_1.bvh","  "]}`), nil
	}

	out := t.TempDir()
	paths, err := e.Extract(context.Background(), "/tmp/in.mp4", out, Options{XSensitivity: 0.5, YSensitivity: 0.25, Stationary: true, OutputFormat: "bvh"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if gotBinary != "motionlab-pose" {
		t.Fatalf("unexpected binary %q", gotBinary)
	}
	joined := strings.Join(gotArgs, " ")
	want := "--model lite --input /tmp/in.mp4 --output " + out + " --x-sensitivity 0.50 --y-sensitivity 0.25 --stationary --format bvh"
	if joined != want {
		t.Fatalf("unexpected args\n got %q\nwant %q", joined, want)
	}
	if len(paths) != 1 || paths[0] != filepath.Join(out, "person_1.bvh") {
		t.Fatalf("unexpected paths %v", paths)
	}
}

func TestExtractorErrors(t *testing.T) {
	if _, err := (&Extractor{}).Extract(context.Background(), "in.mp4", t.TempDir(), Options{}); !errors.Is(err, ErrExtractorUnavailable) {
		t.Fatalf("expected ErrExtractorUnavailable got %v", err)
	}

	cases := map[string]struct {
		out  string
		err  error
		want error
	}{
		"runner failure": {err: errors.New("exit status 1")},
		"bad json":       {out: "not json"},
		"no files":       {out: `{"bvh_files":[]}`, want: ErrNoMotion},
		"escapes outdir": {out: `{"bvh_files":["../../etc/passwd"]}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			e := NewExtractor("motionlab-pose", nil, time.Second)
			e.Run = func(context.Context, string, ...string) ([]byte, error) {
				return []byte(tc.out), tc.err
			}
			_, err := e.Extract(context.Background(), "in.mp4", t.TempDir(), Options{})
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, err)
			}
		})
	}
}
