package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/flipbook/internal/assets"
	"github.com/lehigh-university-libraries/flipbook/internal/catalog"
	"github.com/lehigh-university-libraries/flipbook/internal/models"
	"github.com/lehigh-university-libraries/flipbook/internal/session"
	"github.com/lehigh-university-libraries/flipbook/internal/storage"
	"github.com/lehigh-university-libraries/flipbook/internal/viewer/viewertest"
)

const desktopUA = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"

func newTestHandler(t *testing.T, books []models.BookDescriptor, eventsPerMinute int, opts ...func(*Config)) (*Handler, string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mag", "sub"), 0755))
	for i := 1; i <= 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "mag", assets.PageFilename(i, "jpg")), []byte("jpeg"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mag", "book.pdf"), make([]byte, 2048), 0644))

	cat, err := catalog.New(books)
	require.NoError(t, err)
	resolver, err := assets.NewResolver(assets.Options{})
	require.NoError(t, err)

	cfg := Config{
		Catalog:         cat,
		Resolver:        resolver,
		Sessions:        storage.New(time.Minute, time.Minute),
		BooksDir:        dir,
		Scheduler:       &viewertest.ManualScheduler{},
		EventsPerMinute: eventsPerMinute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(h.Sessions().Flush)
	return h, dir
}

func sampleBooks() []models.BookDescriptor {
	return []models.BookDescriptor{
		{Slug: "mag", Title: "Spring Magazine", PageCount: 3},
		{Slug: "report", Title: "Annual Report", PageCount: 12},
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestViewerPages(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0)
	routes := h.Routes()

	tests := []struct {
		name     string
		target   string
		status   int
		contains []string
	}{
		{"home shows first book", "/", http.StatusOK, []string{"<title>Spring Magazine</title>", "/books/mag/page-1.jpg", "Page 1 / 3", "trailingMove = setTimeout(sendMove, wait)"}},
		{"book page", "/book/report", http.StatusOK, []string{"Annual Report", "/books/report/page-12.jpg", `alt="Page 12"`}},
		{"unknown book", "/book/missing", http.StatusNotFound, []string{"Book Not Found", "Back to Home"}},
		{"unknown path", "/nowhere", http.StatusNotFound, []string{"Book Not Found"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, routes, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rr.Code)
			for _, s := range tt.contains {
				assert.Contains(t, rr.Body.String(), s)
			}
		})
	}
}

func TestHomeWithEmptyCatalog(t *testing.T) {
	h, _ := newTestHandler(t, nil, 0)
	rr := do(t, h.Routes(), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBooksAPI(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0)
	routes := h.Routes()

	rr := do(t, routes, http.MethodGet, "/api/books", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []bookSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, bookSummary{Slug: "mag", Title: "Spring Magazine", PageCount: 3, URL: "/book/mag"}, list[0])

	rr = do(t, routes, http.MethodGet, "/api/books/mag", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var detail bookDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, "mag", detail.Slug)
	assert.Len(t, detail.Pages, 3)
	assert.True(t, detail.Pages[1].IsPriorityLoad)
	assert.False(t, detail.Pages[2].IsPriorityLoad)
	assert.Equal(t, "/books/mag/book.pdf", detail.PDFURL)
	assert.Equal(t, "mag.pdf", detail.DownloadFilename)
	assert.Equal(t, 550, detail.Engine.Width)
	assert.Equal(t, 30, detail.Engine.SwipeDistance)

	rr = do(t, routes, http.MethodGet, "/api/books/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestAssets(t *testing.T) {
	h, dir := newTestHandler(t, sampleBooks(), 0)
	routes := h.Routes()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mag", "vol..2.pdf"), []byte("%PDF"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "report"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report", "book.pdf"), []byte("%PDF"), 0644))

	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{"page image", http.MethodGet, "/books/mag/page-2.jpg", http.StatusOK},
		{"pdf head", http.MethodHead, "/books/mag/book.pdf", http.StatusOK},
		{"missing page", http.MethodGet, "/books/mag/page-9.jpg", http.StatusNotFound},
		{"directory", http.MethodGet, "/books/mag/sub", http.StatusNotFound},
		{"traversal", http.MethodGet, "/books/mag/../../etc/passwd", http.StatusBadRequest},
		{"into another book", http.MethodGet, "/books/mag/../report/book.pdf", http.StatusBadRequest},
		{"slug escapes books dir", http.MethodGet, "/books/../mag/page-1.jpg", http.StatusBadRequest},
		{"dots inside a filename", http.MethodGet, "/books/mag/vol..2.pdf", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, routes, tt.method, tt.target, "")
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	rr := do(t, routes, http.MethodHead, "/books/mag/book.pdf", "")
	assert.Equal(t, "2048", rr.Header().Get("Content-Length"))
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
}

func TestHealthcheck(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0)
	rr := do(t, h.Routes(), http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func createSession(t *testing.T, routes http.Handler, slug string) sessionResponse {
	t.Helper()
	body := `{"slug":"` + slug + `","width":1280,"height":800,"user_agent":"` + desktopUA + `","fullscreen_supported":true,"haptics_supported":false}`
	rr := do(t, routes, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	return created
}

func postEvent(t *testing.T, routes http.Handler, id, body string) (session.Result, int) {
	t.Helper()
	rr := do(t, routes, http.MethodPost, "/api/sessions/"+id+"/events", body)
	var res session.Result
	if rr.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	}
	return res, rr.Code
}

func TestSessionLifecycle(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0)
	routes := h.Routes()

	created := createSession(t, routes, "mag")
	assert.NotEmpty(t, created.ID)
	require.Len(t, created.Effects, 1)
	assert.Equal(t, session.EffectScrollLock, created.Effects[0].Type)
	assert.Equal(t, "Page 1 / 3", created.Snapshot.PageLabel)

	res, code := postEvent(t, routes, created.ID, `{"type":"next"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []session.Effect{{Type: session.EffectFlipNext}}, res.Effects)

	res, code = postEvent(t, routes, created.ID, `{"type":"pageChanged","index":2}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Page 3 / 3", res.Snapshot.PageLabel)
	assert.False(t, res.Snapshot.NextEnabled)

	rr := do(t, routes, http.MethodGet, "/api/sessions/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Snapshot.State.CurrentPageIndex)

	rr = do(t, routes, http.MethodGet, "/api/sessions", "")
	var list []sessionSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "mag", list[0].Book)

	rr = do(t, routes, http.MethodDelete, "/api/sessions/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var deleted sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &deleted))
	assert.True(t, deleted.Snapshot.Closed)
	assert.Contains(t, deleted.Effects, session.Effect{Type: session.EffectScrollLock, On: new(bool)})

	rr = do(t, routes, http.MethodGet, "/api/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	_, code = postEvent(t, routes, created.ID, `{"type":"next"}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSessionDownloadUsesBookFile(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0)
	routes := h.Routes()
	created := createSession(t, routes, "mag")

	res, code := postEvent(t, routes, created.ID, `{"type":"download"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Snapshot.Dialog.Visible)
	assert.Equal(t, "2 KB", res.Snapshot.Dialog.FileSizeLabel)

	res, _ = postEvent(t, routes, created.ID, `{"type":"confirmDownload"}`)
	assert.Equal(t, []session.Effect{{Type: session.EffectDownload, URL: "/books/mag/book.pdf", Filename: "mag.pdf"}}, res.Effects)
}

func TestSessionErrors(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0)
	routes := h.Routes()

	rr := do(t, routes, http.MethodPost, "/api/sessions", `{"slug":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, routes, http.MethodPost, "/api/sessions", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	created := createSession(t, routes, "mag")
	_, code := postEvent(t, routes, created.ID, `{"type":"zoom"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	_, code = postEvent(t, routes, created.ID, `nope`)
	assert.Equal(t, http.StatusBadRequest, code)

	rr = do(t, routes, http.MethodDelete, "/api/sessions/unknown", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEventRateLimit(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 2)
	routes := h.Routes()
	created := createSession(t, routes, "mag")

	// a minute of mouse movement at the browser's 100ms throttle
	for i := 0; i < 600; i++ {
		_, code := postEvent(t, routes, created.ID, `{"type":"pointerMove"}`)
		require.Equal(t, http.StatusOK, code)
	}
	_, code := postEvent(t, routes, created.ID, `{"type":"resize","width":1024,"height":700}`)
	assert.Equal(t, http.StatusOK, code)

	res, code := postEvent(t, routes, created.ID, `{"type":"next"}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Effects, 1)
	assert.Equal(t, session.EffectFlipNext, res.Effects[0].Type)

	res, code = postEvent(t, routes, created.ID, `{"type":"pageChanged","index":1}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Page 2 / 3", res.Snapshot.PageLabel)

	_, code = postEvent(t, routes, created.ID, `{"type":"previous"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)

	// the budget belongs to the session, not the shared client address
	other := createSession(t, routes, "mag")
	_, code = postEvent(t, routes, other.ID, `{"type":"next"}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestSessionCreateRateLimit(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0, func(cfg *Config) {
		cfg.SessionsPerMinute = 2
	})
	routes := h.Routes()

	createSession(t, routes, "mag")
	createSession(t, routes, "report")
	rr := do(t, routes, http.MethodPost, "/api/sessions", `{"slug":"mag","width":1280,"height":800}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 2, h.Sessions().Len())
}

func TestSessionSocket(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	created := createSession(t, h.Routes(), "mag")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + created.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first socketMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, 0, first.Snapshot.State.CurrentPageIndex)

	require.NoError(t, conn.WriteJSON(session.Event{Type: "pageChanged", Index: 1}))

	var sawResult, sawPush bool
	for !(sawResult && sawPush) {
		var msg socketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case "result":
			require.NotNil(t, msg.Result)
			assert.Equal(t, 1, msg.Result.Snapshot.State.CurrentPageIndex)
			sawResult = true
		case "snapshot":
			require.NotNil(t, msg.Snapshot)
			assert.Equal(t, 1, msg.Snapshot.State.CurrentPageIndex)
			sawPush = true
		default:
			t.Fatalf("unexpected message %q", msg.Type)
		}
	}

	// events posted over HTTP are pushed to the socket too
	_, code := postEvent(t, h.Routes(), created.ID, `{"type":"pageChanged","index":2}`)
	require.Equal(t, http.StatusOK, code)
	var pushed socketMessage
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, "snapshot", pushed.Type)
	assert.Equal(t, 2, pushed.Snapshot.State.CurrentPageIndex)

	rr := do(t, h.Routes(), http.MethodDelete, "/api/sessions/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var closing socketMessage
	require.NoError(t, conn.ReadJSON(&closing))
	assert.True(t, closing.Snapshot.Closed)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestSocketUnknownSession(t *testing.T) {
	h, _ := newTestHandler(t, sampleBooks(), 0)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/sessions/nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
