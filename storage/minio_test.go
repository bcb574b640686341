package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wyfcoding/beaconrange/xerrors"
)

// fakeS3 只实现 path-style 的 GetObject / PutObject，足够驱动 MinIOClient.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["location"]; ok {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><LocationConstraint>us-east-1</LocationConstraint>`)
		return
	}

	switch r.Method {
	case http.MethodPut:
		body, err := readPutBody(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.objects[r.URL.Path] = body
		f.mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		f.mu.Lock()
		body, ok := f.objects[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code>`+
				`<Message>The specified key does not exist.</Message><Resource>%s</Resource><RequestId>1</RequestId></Error>`, r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// readPutBody 非 TLS 连接下 minio-go 使用 aws-chunked 流式签名上传.
func readPutBody(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}
	br := bufio.NewReader(r.Body)
	var out []byte
	for {
		header, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(header), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}

func newTestMinIO(t *testing.T, srv *httptest.Server) *MinIOClient {
	t.Helper()
	c, err := NewMinIOClient(MinIOOptions{
		Endpoint:        strings.TrimPrefix(srv.URL, "http://"),
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Region:          "us-east-1",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMinIORoundTrip(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeS3(t)
	r := NewRouter(nil, newTestMinIO(t, srv))

	lines := []string{"70,70,1", "65,67,1"}
	if err := r.WriteLines(ctx, "s3://rssi/2024/out.txt", lines); err != nil {
		t.Fatal(err)
	}
	fake.mu.Lock()
	stored := string(fake.objects["/rssi/2024/out.txt"])
	fake.mu.Unlock()
	if stored != "70,70,1\n65,67,1\n" {
		t.Errorf("stored object = %q", stored)
	}

	got, err := r.ReadLines(ctx, "s3://rssi/2024/out.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, lines) {
		t.Errorf("ReadLines = %q", got)
	}
}

func TestMinIOMissingObject(t *testing.T) {
	_, srv := newFakeS3(t)
	_, err := newTestMinIO(t, srv).ReadLines(context.Background(), "s3://rssi/missing.txt")
	if !xerrors.IsType(err, xerrors.ErrIO) {
		t.Fatalf("expected IO error, got %v", err)
	}
	e, _ := xerrors.FromError(err)
	if e.Context["location"] != "s3://rssi/missing.txt" {
		t.Errorf("error context = %v", e.Context)
	}
}
