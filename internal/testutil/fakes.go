package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/waffle/pantry/storage"
)

// ErrBlobNotFound is returned by MemBlobs for unknown keys.
var ErrBlobNotFound = errors.New("blob not found")

// MemBlobs is an in-memory blob store for handler tests.
type MemBlobs struct {
	mu    sync.Mutex
	Files map[string][]byte
}

// NewMemBlobs creates an empty MemBlobs.
func NewMemBlobs() *MemBlobs {
	return &MemBlobs{Files: map[string][]byte{}}
}

func (m *MemBlobs) Put(_ context.Context, path string, r io.Reader, _ *storage.PutOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[path] = data
	return nil
}

func (m *MemBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Files[path]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemBlobs) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Files, path)
	return nil
}

// Len returns the number of stored blobs.
func (m *MemBlobs) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Files)
}

// MailRecorder captures sent emails. Set Err to make Send fail.
type MailRecorder struct {
	mu   sync.Mutex
	Sent []mailer.Email
	Err  error
}

// Send implements mailer.Sender.
func (m *MailRecorder) Send(e mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, e)
	return nil
}

// Last returns the most recent email, or a zero Email.
func (m *MailRecorder) Last() mailer.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return mailer.Email{}
	}
	return m.Sent[len(m.Sent)-1]
}

// Count returns the number of emails sent.
func (m *MailRecorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
