// Package blobtest provides an in-memory blob.Backend for tests.
package blobtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

var ErrInjected = errors.New("injected backend failure")

type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []string

	// FailBody makes Put fail for any payload equal to it.
	FailBody string
	// FailDelete makes every Delete fail, as if the host were unreachable.
	FailDelete bool
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.FailBody != "" && string(b) == m.FailBody {
		return "", ErrInjected
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ref := "mem://" + key
	m.objects[ref] = b
	return ref, nil
}

func (m *Memory) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, ref)
	if m.FailDelete {
		return ErrInjected
	}
	if !strings.HasPrefix(ref, "mem://") {
		return fmt.Errorf("foreign ref %s", ref)
	}
	delete(m.objects, ref)
	return nil
}

// Refs returns the stored references in sorted order.
func (m *Memory) Refs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for ref := range m.objects {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[ref]
	return ok
}

// Deleted returns every reference Delete was called with.
func (m *Memory) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}
