package objectstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeBackend is an in-memory Backend with per-primitive error injection.
// failPut/failGet/failRemove/failList make the next N calls of that primitive
// fail before it starts succeeding again.
type fakeBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	failPut    int
	failGet    int
	failRemove int
	failList   int

	// failRemoveKey restricts Remove failures to a single key.
	failRemoveKey string

	putCalls    int
	getCalls    int
	removeCalls int
	listCalls   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.failPut > 0 {
		f.failPut--
		return fmt.Errorf("injected put failure")
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	f.objects[key] = stored
	f.types[key] = contentType
	return nil
}

func (f *fakeBackend) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGet > 0 {
		f.failGet--
		return nil, fmt.Errorf("injected get failure")
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, ErrNotFound)
	}
	return data, nil
}

func (f *fakeBackend) Remove(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	for _, key := range keys {
		if f.failRemove > 0 && (f.failRemoveKey == "" || f.failRemoveKey == key) {
			f.failRemove--
			return fmt.Errorf("injected remove failure")
		}
	}
	for _, key := range keys {
		delete(f.objects, key)
	}
	return nil
}

func (f *fakeBackend) List(ctx context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failList > 0 {
		f.failList--
		return nil, fmt.Errorf("injected list failure")
	}
	var names []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			names = append(names, key)
		}
	}
	return names, nil
}

func (f *fakeBackend) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

// newTestClient shortens the backoff so retry tests run fast.
func newTestClient(backend Backend) *Client {
	c := NewClient(backend)
	c.delay = time.Millisecond
	return c
}

func TestUploadDownloadDrawing_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		data interface{}
	}{
		{"Empty object", map[string]interface{}{}},
		{"Scene", map[string]interface{}{"elements": []interface{}{}, "appState": map[string]interface{}{}}},
		{"Nested", map[string]interface{}{"a": map[string]interface{}{"b": []interface{}{1.0, 2.5, nil}}}},
		{"Unicode", map[string]interface{}{"name": "skizze 世界 🌍"}},
		{"Numbers", map[string]interface{}{"big": 1e15, "small": 0.0001, "neg": -42.0}},
		{"Null value", map[string]interface{}{"x": nil}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(newFakeBackend())
			ctx := context.Background()

			result, err := client.UploadDrawing(ctx, "abc-1", tc.data)
			if err != nil {
				t.Fatalf("UploadDrawing() failed: %v", err)
			}
			if result.Key != "drawings/abc-1/data.json" {
				t.Errorf("Upload key mismatch: got %q", result.Key)
			}
			if result.URL == "" {
				t.Error("Upload returned empty URL")
			}

			raw, err := client.DownloadDrawing(ctx, "abc-1")
			if err != nil {
				t.Fatalf("DownloadDrawing() failed: %v", err)
			}

			var got interface{}
			if err := json.Unmarshal(raw, &got); err != nil {
				t.Fatalf("Downloaded payload is not valid JSON: %v", err)
			}
			if !reflect.DeepEqual(got, tc.data) {
				t.Errorf("Round trip mismatch: got %#v, want %#v", got, tc.data)
			}
		})
	}
}

func TestUploadDrawing_Upsert(t *testing.T) {
	client := newTestClient(newFakeBackend())
	ctx := context.Background()

	first, err := client.UploadDrawing(ctx, "abc-1", map[string]string{"v": "one"})
	if err != nil {
		t.Fatalf("First UploadDrawing() failed: %v", err)
	}
	second, err := client.UploadDrawing(ctx, "abc-1", map[string]string{"v": "two"})
	if err != nil {
		t.Fatalf("Second UploadDrawing() failed: %v", err)
	}

	if first.URL != second.URL {
		t.Errorf("URL changed across uploads of the same id: %q vs %q", first.URL, second.URL)
	}

	raw, err := client.DownloadDrawing(ctx, "abc-1")
	if err != nil {
		t.Fatalf("DownloadDrawing() failed: %v", err)
	}
	if !strings.Contains(string(raw), "two") {
		t.Errorf("Download did not reflect latest upload: %s", raw)
	}
}

func TestUploadThumbnail_ByteFidelity(t *testing.T) {
	pngSig := []byte{0x89, 0x50, 0x4E, 0x47}

	testCases := []struct {
		name   string
		upload func(client *Client) error
	}{
		{"Raw bytes", func(client *Client) error {
			_, err := client.UploadThumbnail(context.Background(), "abc-1", pngSig)
			return err
		}},
		{"Base64", func(client *Client) error {
			_, err := client.UploadThumbnailBase64(context.Background(), "abc-1", base64.StdEncoding.EncodeToString(pngSig))
			return err
		}},
		{"Data URL", func(client *Client) error {
			encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngSig)
			_, err := client.UploadThumbnailBase64(context.Background(), "abc-1", encoded)
			return err
		}},
		{"WebP data URL", func(client *Client) error {
			encoded := "data:image/webp;base64," + base64.StdEncoding.EncodeToString(pngSig)
			_, err := client.UploadThumbnailBase64(context.Background(), "abc-1", encoded)
			return err
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(newFakeBackend())
			if err := tc.upload(client); err != nil {
				t.Fatalf("upload failed: %v", err)
			}

			got, err := client.DownloadThumbnail(context.Background(), "abc-1")
			if err != nil {
				t.Fatalf("DownloadThumbnail() failed: %v", err)
			}
			if !reflect.DeepEqual(got, pngSig) {
				t.Errorf("Thumbnail bytes mismatch: got %v, want %v", got, pngSig)
			}
		})
	}
}

func TestUploadThumbnailBase64_InvalidEncoding(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(backend)

	_, err := client.UploadThumbnailBase64(context.Background(), "abc-1", "not v@lid base64!!")
	if err == nil {
		t.Fatal("UploadThumbnailBase64() should fail for invalid base64")
	}
	if backend.putCalls != 0 {
		t.Errorf("Backend should not be called for undecodable input, got %d puts", backend.putCalls)
	}
}

func TestRetry_Bound(t *testing.T) {
	backend := newFakeBackend()
	backend.failPut = 100 // fail every attempt
	client := newTestClient(backend)

	_, err := client.UploadDrawing(context.Background(), "abc-1", map[string]string{})
	if err == nil {
		t.Fatal("UploadDrawing() should fail when the backend always fails")
	}
	if backend.putCalls != 3 {
		t.Errorf("Expected exactly 3 put attempts, got %d", backend.putCalls)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Error should embed the attempt count: %q", err)
	}
	if !strings.Contains(err.Error(), "injected put failure") {
		t.Errorf("Error should embed the last underlying error: %q", err)
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	backend := newFakeBackend()
	backend.failPut = 2 // fail twice, then succeed
	client := newTestClient(backend)

	result, err := client.UploadDrawing(context.Background(), "abc-1", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("UploadDrawing() should succeed on the third attempt: %v", err)
	}
	if backend.putCalls != 3 {
		t.Errorf("Expected exactly 3 put attempts, got %d", backend.putCalls)
	}
	if result.Key != DataKey("abc-1") {
		t.Errorf("Upload key mismatch: got %q", result.Key)
	}
}

func TestRetry_BackoffDelays(t *testing.T) {
	backend := newFakeBackend()
	backend.failPut = 2
	client := NewClient(backend)
	client.delay = 20 * time.Millisecond

	start := time.Now()
	_, err := client.UploadDrawing(context.Background(), "abc-1", map[string]string{})
	if err != nil {
		t.Fatalf("UploadDrawing() failed: %v", err)
	}

	// Two delays: 20ms then 40ms.
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("Backoff too short: %v", elapsed)
	}
}

func TestDownloadDrawing_RetriesNotFound(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(backend)

	_, err := client.DownloadDrawing(context.Background(), "missing")
	if err == nil {
		t.Fatal("DownloadDrawing() should fail for a missing drawing")
	}
	// Absence is indistinguishable from a transient failure and consumes the
	// full retry budget.
	if backend.getCalls != 3 {
		t.Errorf("Expected 3 get attempts for a missing object, got %d", backend.getCalls)
	}
}

func TestDownloadDrawing_InvalidStoredJSON(t *testing.T) {
	backend := newFakeBackend()
	backend.objects[DataKey("abc-1")] = []byte("{not json")
	client := newTestClient(backend)

	_, err := client.DownloadDrawing(context.Background(), "abc-1")
	if err == nil {
		t.Fatal("DownloadDrawing() should fail for invalid stored JSON")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("Expected a parse error, got: %q", err)
	}
	// The fetch succeeded, so the failure must not consume retries.
	if backend.getCalls != 1 {
		t.Errorf("Parse failures must not be retried: got %d get calls", backend.getCalls)
	}
}

func TestDownload_EmptyResponse(t *testing.T) {
	backend := newFakeBackend()
	backend.objects[DataKey("abc-1")] = []byte{}
	backend.objects[ThumbnailKey("abc-1")] = []byte{}
	client := newTestClient(backend)

	if _, err := client.DownloadDrawing(context.Background(), "abc-1"); err == nil || !strings.Contains(err.Error(), ErrNoData.Error()) {
		t.Errorf("DownloadDrawing() should surface ErrNoData for empty body, got %v", err)
	}
	if _, err := client.DownloadThumbnail(context.Background(), "abc-1"); err == nil || !strings.Contains(err.Error(), ErrNoData.Error()) {
		t.Errorf("DownloadThumbnail() should surface ErrNoData for empty body, got %v", err)
	}
}

func TestDrawingExists_Lifecycle(t *testing.T) {
	client := newTestClient(newFakeBackend())
	ctx := context.Background()

	exists, err := client.DrawingExists(ctx, "abc-1")
	if err != nil {
		t.Fatalf("DrawingExists() failed: %v", err)
	}
	if exists {
		t.Error("DrawingExists() should be false before any upload")
	}

	if _, err := client.UploadDrawing(ctx, "abc-1", map[string]interface{}{"elements": []interface{}{}, "appState": map[string]interface{}{}}); err != nil {
		t.Fatalf("UploadDrawing() failed: %v", err)
	}

	exists, err = client.DrawingExists(ctx, "abc-1")
	if err != nil {
		t.Fatalf("DrawingExists() failed: %v", err)
	}
	if !exists {
		t.Error("DrawingExists() should be true after upload")
	}

	client.DeleteDrawing(ctx, "abc-1")

	exists, err = client.DrawingExists(ctx, "abc-1")
	if err != nil {
		t.Fatalf("DrawingExists() failed: %v", err)
	}
	if exists {
		t.Error("DrawingExists() should be false after deletion")
	}
}

func TestDrawingExists_IgnoresThumbnailOnly(t *testing.T) {
	backend := newFakeBackend()
	backend.objects[ThumbnailKey("abc-1")] = []byte{0x89}
	client := newTestClient(backend)

	exists, err := client.DrawingExists(context.Background(), "abc-1")
	if err != nil {
		t.Fatalf("DrawingExists() failed: %v", err)
	}
	if exists {
		t.Error("A thumbnail alone must not make the drawing exist")
	}
}

func TestDeleteDrawing_RemovesBothObjects(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(backend)
	ctx := context.Background()

	if _, err := client.UploadDrawing(ctx, "abc-1", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("UploadDrawing() failed: %v", err)
	}
	if _, err := client.UploadThumbnail(ctx, "abc-1", []byte{0x89, 0x50}); err != nil {
		t.Fatalf("UploadThumbnail() failed: %v", err)
	}

	result := client.DeleteDrawing(ctx, "abc-1")
	if !result.Complete() {
		t.Errorf("DeleteDrawing() reported partial failure: %+v", result)
	}
	if len(backend.objects) != 0 {
		t.Errorf("Expected empty backend after delete, %d objects remain", len(backend.objects))
	}
}

func TestDeleteDrawing_Idempotent(t *testing.T) {
	client := newTestClient(newFakeBackend())
	ctx := context.Background()

	first := client.DeleteDrawing(ctx, "never-existed")
	if !first.Complete() {
		t.Errorf("First delete of a missing drawing should be clean: %+v", first)
	}
	second := client.DeleteDrawing(ctx, "never-existed")
	if !second.Complete() {
		t.Errorf("Second delete of a missing drawing should be clean: %+v", second)
	}
}

func TestDeleteDrawing_PartialFailureDoesNotStopOtherDelete(t *testing.T) {
	backend := newFakeBackend()
	client := newTestClient(backend)
	ctx := context.Background()

	if _, err := client.UploadDrawing(ctx, "abc-1", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("UploadDrawing() failed: %v", err)
	}
	if _, err := client.UploadThumbnail(ctx, "abc-1", []byte{0x89}); err != nil {
		t.Fatalf("UploadThumbnail() failed: %v", err)
	}

	// Exhaust the retry budget for the data key only.
	backend.failRemoveKey = DataKey("abc-1")
	backend.failRemove = 3

	result := client.DeleteDrawing(ctx, "abc-1")
	if result.DataErr == nil {
		t.Error("Expected the data delete to fail")
	}
	if result.ThumbnailErr != nil {
		t.Errorf("Thumbnail delete should have proceeded: %v", result.ThumbnailErr)
	}
	if _, ok := backend.objects[ThumbnailKey("abc-1")]; ok {
		t.Error("Thumbnail object should have been removed despite the data failure")
	}
	if _, ok := backend.objects[DataKey("abc-1")]; !ok {
		t.Error("Data object should survive its failed delete")
	}
}

func TestDeleteDrawing_NeverReturnsError(t *testing.T) {
	backend := newFakeBackend()
	backend.failRemove = 100
	client := newTestClient(backend)

	// Compile-time shape: DeleteDrawing returns only a result, never an
	// error. A fully failing backend must still resolve.
	result := client.DeleteDrawing(context.Background(), "abc-1")
	if result.Complete() {
		t.Error("Expected both deletes to fail against a broken backend")
	}
}

func TestConcurrentOperations(t *testing.T) {
	client := newTestClient(newFakeBackend())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("drawing-%d", n)
			if _, err := client.UploadDrawing(ctx, id, map[string]int{"n": n}); err != nil {
				t.Errorf("Concurrent UploadDrawing() failed: %v", err)
				return
			}
			if _, err := client.DownloadDrawing(ctx, id); err != nil {
				t.Errorf("Concurrent DownloadDrawing() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
}

func TestDecodeThumbnail(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03}
	encoded := base64.StdEncoding.EncodeToString(raw)

	testCases := []struct {
		name  string
		input string
	}{
		{"Plain base64", encoded},
		{"PNG data URL", "data:image/png;base64," + encoded},
		{"JPEG data URL", "data:image/jpeg;base64," + encoded},
		{"SVG data URL", "data:image/svg+xml;base64," + encoded},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeThumbnail(tc.input)
			if err != nil {
				t.Fatalf("DecodeThumbnail() failed: %v", err)
			}
			if !reflect.DeepEqual(got, raw) {
				t.Errorf("DecodeThumbnail() mismatch: got %v, want %v", got, raw)
			}
		})
	}
}
