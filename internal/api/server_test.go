package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anilcodes01/proto-book/internal/domain"
	"github.com/Anilcodes01/proto-book/internal/extract"
	"github.com/Anilcodes01/proto-book/internal/extract/docxtest"
	"github.com/Anilcodes01/proto-book/internal/pipeline"
	"github.com/Anilcodes01/proto-book/internal/storage"
	"github.com/Anilcodes01/proto-book/internal/store"
	"github.com/Anilcodes01/proto-book/internal/templates"
)

type memoryArtifacts struct{}

func (memoryArtifacts) Upload(_ context.Context, _ []byte, folder string, _ storage.Kind, key string) (storage.Artifact, error) {
	name := folder + "/" + key
	return storage.Artifact{Key: name, URL: "http://cdn.test/" + name, SecureURL: "https://cdn.test/" + name}, nil
}

type stubRenderer struct {
	err error
}

func (r stubRenderer) Render(context.Context, string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7 stub"), nil
}

type testEnv struct {
	server *httptest.Server
	books  *store.MemoryBookStore
}

func newTestEnv(t *testing.T, render stubRenderer, checks map[string]Check) *testEnv {
	t.Helper()
	books := store.NewMemoryBookStore()
	processor, err := pipeline.NewProcessor(pipeline.Deps{
		Records:   books,
		Artifacts: memoryArtifacts{},
		Extractor: extract.Docx{},
		Templates: templates.NewCache(templates.EmbeddedSource{}, zerolog.Nop()),
		Renderer:  render,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	srv := NewServer(Options{
		Logger:    zerolog.Nop(),
		Processor: processor,
		Books:     books,
		Registry:  prometheus.NewRegistry(),
		Checks:    checks,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, books: books}
}

func uploadBody(t *testing.T, contentType string, data []byte, templateName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="story.docx"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if templateName != "" {
		require.NoError(t, mw.WriteField("templateName", templateName))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type envelope struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	BookID      *string `json:"bookId"`
	OriginalURL string  `json:"originalUrl"`
	PDFURL      string  `json:"pdfUrl"`
}

func postBook(t *testing.T, env *testEnv, body *bytes.Buffer, contentType string) (int, envelope) {
	t.Helper()
	resp, err := http.Post(env.server.URL+"/api/process-book", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func sampleDocx() []byte {
	return docxtest.Document(docxtest.Heading("1", "Prologue") + docxtest.Paragraph("It begins."))
}

func TestProcessBookSuccess(t *testing.T) {
	env := newTestEnv(t, stubRenderer{}, nil)
	body, ct := uploadBody(t, domain.DocxContentType, sampleDocx(), "modern")

	status, out := postBook(t, env, body, ct)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, out.Success)
	assert.Equal(t, "Book processed successfully!", out.Message)
	require.NotNil(t, out.BookID)
	assert.True(t, strings.HasPrefix(out.OriginalURL, "https://cdn.test/book-formatter/originals/"))
	assert.True(t, strings.HasPrefix(out.PDFURL, "https://cdn.test/book-formatter/pdfs/"))

	resp, err := http.Get(env.server.URL + "/api/books/" + *out.BookID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var book domain.Book
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&book))
	assert.Equal(t, "story.docx", book.OriginalFilename)
	assert.Equal(t, out.PDFURL, book.PDFSecureURL)
	assert.NotNil(t, book.ProcessedAt)
}

func TestProcessBookRejectsWrongType(t *testing.T) {
	env := newTestEnv(t, stubRenderer{}, nil)
	body, ct := uploadBody(t, "text/plain", []byte("hello"), "")

	status, out := postBook(t, env, body, ct)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)
	assert.Nil(t, out.BookID)
	assert.Contains(t, out.Message, "invalid file type")
}

func TestProcessBookRejectsOversizedUpload(t *testing.T) {
	env := newTestEnv(t, stubRenderer{}, nil)
	body, ct := uploadBody(t, domain.DocxContentType, bytes.Repeat([]byte("a"), domain.MaxUploadBytes+1024), "")

	status, out := postBook(t, env, body, ct)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)
	assert.Nil(t, out.BookID)
	assert.Contains(t, out.Message, "10MB limit")
}

func TestReadSubmissionBodyOverLimit(t *testing.T) {
	body, ct := uploadBody(t, domain.DocxContentType, bytes.Repeat([]byte("a"), 11*1024*1024+1), "")
	req := httptest.NewRequest(http.MethodPost, "/api/process-book", body)
	req.Header.Set("Content-Type", ct)

	_, err := readSubmission(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
	assert.True(t, pipeline.IsValidation(err))
}

func TestUnreadableFilePartIsReported(t *testing.T) {
	header := &multipart.FileHeader{Filename: "story.docx", Size: 42}
	_, err := withFilePart(domain.Submission{}, header, iotest.ErrReader(errors.New("disk full")))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnreadableFile)
	assert.True(t, pipeline.IsValidation(err))

	msg := pipeline.UserMessage(err)
	assert.Contains(t, msg, "could not be read")
	assert.Contains(t, msg, "disk full")
	assert.NotContains(t, msg, "missing")
}

func TestProcessBookMissingFile(t *testing.T) {
	env := newTestEnv(t, stubRenderer{}, nil)
	body, ct := uploadBody(t, "", nil, "classic")

	status, out := postBook(t, env, body, ct)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out.Message, "file field 'file' is missing")
}

func TestProcessBookRendererUnavailable(t *testing.T) {
	env := newTestEnv(t, stubRenderer{err: fmt.Errorf("%w: no browser", domain.ErrRendererUnavailable)}, nil)
	body, ct := uploadBody(t, domain.DocxContentType, sampleDocx(), "classic")

	status, out := postBook(t, env, body, ct)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, out.Success)
	require.NotNil(t, out.BookID)
	assert.Contains(t, out.Message, "PDF renderer is unavailable")

	book, ok, err := env.books.Get(context.Background(), *out.BookID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, book.OriginalSecureURL)
	assert.NotEmpty(t, book.ErrorMessage)
}

func TestGetUnknownBook(t *testing.T) {
	env := newTestEnv(t, stubRenderer{}, nil)

	resp, err := http.Get(env.server.URL + "/api/books/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, stubRenderer{}, map[string]Check{
		"storage": func(context.Context) error { return nil },
		"records": func(context.Context) error { return errors.New("connection refused") },
	})

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.server.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var out struct {
		Ready  bool              `json:"ready"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Ready)
	assert.Equal(t, "ok", out.Checks["storage"])
	assert.Equal(t, "connection refused", out.Checks["records"])
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	env := newTestEnv(t, stubRenderer{}, nil)

	resp, err := http.Get(env.server.URL + "/api/books/abc")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `route="/api/books/{id}"`)
	assert.NotContains(t, buf.String(), `route="/api/books/abc"`)
}
