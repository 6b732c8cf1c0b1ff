package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ericfisherdev/forumbridge/internal/application"
	"github.com/ericfisherdev/forumbridge/internal/domain/model"
)

// --- Mock implementations ---

// mockExchanger issues a token valid for lifetime on every call, unless the
// call index has a queued error.
type mockExchanger struct {
	clock    clock.Clock
	lifetime time.Duration

	mu    sync.Mutex
	calls int
	errs  map[int]error
}

func newMockExchanger(clk clock.Clock, lifetime time.Duration) *mockExchanger {
	return &mockExchanger{clock: clk, lifetime: lifetime, errs: map[int]error{}}
}

// failOn makes the n-th call (1-based) fail.
func (m *mockExchanger) failOn(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[n] = err
}

func (m *mockExchanger) Exchange(_ context.Context) (model.InstallationCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err := m.errs[m.calls]; err != nil {
		return model.InstallationCredential{}, err
	}

	return model.InstallationCredential{
		Token:     fmt.Sprintf("ghs_%d", m.calls),
		ExpiresAt: m.clock.Now().Add(m.lifetime),
	}, nil
}

func (m *mockExchanger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// staticCredentials is a CredentialSource returning a fixed result.
type staticCredentials struct {
	cred model.InstallationCredential
	err  error
}

func (s staticCredentials) Credential() (model.InstallationCredential, error) {
	return s.cred, s.err
}

var _ application.CredentialSource = staticCredentials{}

// mockSnapshotStore is an in-memory MappingSnapshotStore.
type mockSnapshotStore struct {
	mu      sync.Mutex
	issues  map[uint64]int
	found   bool
	saves   int
	loadErr error
	saveErr error
}

func (m *mockSnapshotStore) Load(_ context.Context) (map[uint64]int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	if !m.found {
		return nil, false, nil
	}
	out := make(map[uint64]int, len(m.issues))
	for k, v := range m.issues {
		out[k] = v
	}
	return out, true, nil
}

func (m *mockSnapshotStore) Save(_ context.Context, issues map[uint64]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.issues = make(map[uint64]int, len(issues))
	for k, v := range issues {
		m.issues[k] = v
	}
	m.found = true
	m.saves++
	return nil
}

func (m *mockSnapshotStore) saved() map[uint64]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issues
}

func (m *mockSnapshotStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// mockTracker records every IssueTracker call.
type mockTracker struct {
	mu         sync.Mutex
	nextNumber int
	issues     map[int]model.Issue
	comments   map[int][]string
	calls      []string
	createErr  error
	getErr     error
	updateErr  error
	commentErr error

	// createGate, when set, blocks CreateIssue until it is closed.
	createGate chan struct{}
	creates    atomic.Int32
}

func newMockTracker() *mockTracker {
	return &mockTracker{
		nextNumber: 1,
		issues:     map[int]model.Issue{},
		comments:   map[int][]string{},
	}
}

func (m *mockTracker) CreateIssue(_ context.Context, cred model.InstallationCredential, title, body string) (model.Issue, error) {
	m.creates.Add(1)
	if m.createGate != nil {
		<-m.createGate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "create:"+cred.Token)
	if m.createErr != nil {
		return model.Issue{}, m.createErr
	}

	number := m.nextNumber
	m.nextNumber++
	issue := model.Issue{
		ID:     int64(900000 + number),
		Number: number,
		Title:  title,
		Body:   body,
		URL:    fmt.Sprintf("https://github.com/acme/game/issues/%d", number),
	}
	m.issues[number] = issue
	return issue, nil
}

func (m *mockTracker) GetIssue(_ context.Context, _ model.InstallationCredential, number int) (model.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("get:%d", number))
	if m.getErr != nil {
		return model.Issue{}, m.getErr
	}
	issue, ok := m.issues[number]
	if !ok {
		return model.Issue{}, errors.New("not found")
	}
	return issue, nil
}

func (m *mockTracker) UpdateIssue(_ context.Context, _ model.InstallationCredential, number int, title, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("update:%d", number))
	if m.updateErr != nil {
		return m.updateErr
	}
	issue := m.issues[number]
	issue.Title = title
	issue.Body = body
	m.issues[number] = issue
	return nil
}

func (m *mockTracker) CreateComment(_ context.Context, _ model.InstallationCredential, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("comment:%d", number))
	if m.commentErr != nil {
		return m.commentErr
	}
	m.comments[number] = append(m.comments[number], body)
	return nil
}

func (m *mockTracker) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockTracker) issue(number int) model.Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issues[number]
}

// mockChat records thread posts.
type mockChat struct {
	mu    sync.Mutex
	posts []threadPost
	err   error
}

type threadPost struct {
	threadID uint64
	content  string
}

func (m *mockChat) PostThreadMessage(_ context.Context, threadID uint64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, threadPost{threadID: threadID, content: content})
	return m.err
}

// mockResponder records the replies to one invocation.
type mockResponder struct {
	mu      sync.Mutex
	replies []reply
}

type reply struct {
	content   string
	ephemeral bool
}

func (m *mockResponder) Respond(_ context.Context, content string, ephemeral bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, reply{content: content, ephemeral: ephemeral})
	return nil
}

func (m *mockResponder) all() []reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reply(nil), m.replies...)
}
