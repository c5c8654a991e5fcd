package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "book-formatter/pdfs/book-1-2", objectKey("book-formatter/pdfs", "book-1-2"))
	assert.Equal(t, "book-formatter/pdfs/book-1-2", objectKey("/book-formatter/pdfs/", "book-1-2"))
	assert.Equal(t, "book-1-2", objectKey("", "book-1-2"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/octet-stream", contentTypeFor(KindRaw, []byte("%PDF-1.7")))
	assert.Equal(t, "application/pdf", contentTypeFor(KindImage, []byte("%PDF-1.7\n...")))
}

func TestPublicURLs(t *testing.T) {
	plain, secure := publicURLs("cdn.example.com", "books", "book-formatter/originals/book-7-1700000000000")
	assert.Equal(t, "http://cdn.example.com/books/book-formatter/originals/book-7-1700000000000", plain)
	assert.Equal(t, "https://cdn.example.com/books/book-formatter/originals/book-7-1700000000000", secure)
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(fmt.Errorf("close: %w", &googleapi.Error{Code: 412})))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: 500}))
	assert.False(t, isPreconditionFailed(fmt.Errorf("plain")))
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "localhost:9000", Access: "a", Secret: "b"})
	assert.Error(t, err)

	c, err := NewClient(Config{Endpoint: "localhost:9000", Access: "a", Secret: "b", Bucket: "books"})
	assert.NoError(t, err)
	assert.Equal(t, "books", c.Bucket())
	assert.Equal(t, "localhost:9000", c.publicHost)
}
