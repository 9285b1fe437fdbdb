package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/testutil"
)

type published struct {
	topic, key string
	event      Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, key string, ev any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, _ := ev.(Event)
	p.events = append(p.events, published{topic, key, e})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event.Type)
	}
	return out
}

// Leading bytes of real image files; format detection only looks at the head.
const (
	pngImage  = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"
	jpegImage = "\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00"
)

type recordingUploader struct {
	keys   []string
	types  []string
	bodies []string
	err    error
}

func (u *recordingUploader) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	b, _ := io.ReadAll(r)
	u.keys = append(u.keys, key)
	u.types = append(u.types, contentType)
	u.bodies = append(u.bodies, string(b))
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.test/" + key, nil
}

type fixture struct {
	repo   *repo.GormRepo
	events *recordingPublisher
	user   models.User
	other  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	role := testutil.SeedRole(t, db, models.RoleUser)
	return &fixture{
		repo:   repo.New(db),
		events: &recordingPublisher{},
		user:   testutil.SeedUser(t, db, "alice", role.ID),
		other:  testutil.SeedUser(t, db, "bob", role.ID),
	}
}

func (f *fixture) cart() *CartService {
	return &CartService{Repo: f.repo, Events: f.events}
}

func (f *fixture) orders() *OrderService {
	return &OrderService{Repo: f.repo, Events: f.events}
}
