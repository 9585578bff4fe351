package testhelpers

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type SentSMS struct {
	To   string
	Body string
}

// FakeSMS records every message. Set Err to make sends fail.
type FakeSMS struct {
	mu   sync.Mutex
	Sent []SentSMS
	Err  error
}

func (f *FakeSMS) SendSMS(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	f.Sent = append(f.Sent, SentSMS{To: to, Body: body})
	return fmt.Sprintf("SM%032d", len(f.Sent)), nil
}

func (f *FakeSMS) Messages() []SentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentSMS(nil), f.Sent...)
}

// LastBody returns the body of the newest message to phone, or "".
func (f *FakeSMS) LastBody(phone string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Sent) - 1; i >= 0; i-- {
		if f.Sent[i].To == phone {
			return f.Sent[i].Body
		}
	}
	return ""
}

type FakeObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error
}

func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{Objects: map[string][]byte{}}
}

func (f *FakeObjectStore) Put(_ context.Context, path, _ string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Objects[path] = append([]byte(nil), data...)
	return nil
}

func (f *FakeObjectStore) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return fmt.Sprintf("https://storage.test/%s?expires=%d", url.PathEscape(path), int(ttl.Seconds())), nil
}

// FakeIdentityProvider maps bearer tokens to account users.
type FakeIdentityProvider struct {
	Users map[string]*models.AccountUser
}

func (f *FakeIdentityProvider) GetUser(_ context.Context, token string) (*models.AccountUser, error) {
	if u, ok := f.Users[token]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: unknown token", utils.ErrUnauthenticated)
}

type SentEmail struct {
	To      string
	Subject string
	Body    string
}

type FakeEmailSender struct {
	mu   sync.Mutex
	Sent []SentEmail
	Err  error
}

func (f *FakeEmailSender) SendEmail(_ context.Context, toEmail, _, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, SentEmail{To: toEmail, Subject: subject, Body: body})
	return nil
}

// FakeTranslator prefixes the target language so tests can see it ran.
type FakeTranslator struct {
	Err error
}

func (f *FakeTranslator) Translate(_ context.Context, text, lang string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return "[" + lang + "] " + text, nil
}

type Transfer struct {
	Destination    string
	AmountCents    int64
	IdempotencyKey string
}

type FakePayoutGateway struct {
	mu        sync.Mutex
	Transfers []Transfer
	Err       error
}

func (f *FakePayoutGateway) Transfer(_ context.Context, dest string, amount int64, key string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	f.Transfers = append(f.Transfers, Transfer{Destination: dest, AmountCents: amount, IdempotencyKey: key})
	return fmt.Sprintf("tr_%d", len(f.Transfers)), nil
}

// Clock is a settable time source shared by a store and the services under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
