package domain

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/pulse/internal/platform/pagination"
)

func TestSendLiveAndFallbackStoreIdenticalShape(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addConversation(Conversation{ID: "conv-1", Participants: []string{"alice", "bob"}})
	live := fakeLive{"alice": {"conn-1": true}}
	fanout := &recordingFanout{reach: 1}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, live, fanout, fixedClock(now), sequentialIDGenerator("msg-1", "msg-2"))

	content := "  see you soon "
	attachments := []Attachment{{URL: "https://cdn.example/a.png", MimeType: "IMAGE/PNG", Name: "a.png", SizeBytes: 10}}

	liveResult, err := svc.Send(context.Background(), SendInput{
		SenderID: "alice", ConversationID: "conv-1", ConnectionID: "conn-1",
		Content: &content, Attachments: attachments,
	})
	if err != nil {
		t.Fatalf("live send: %v", err)
	}
	fallbackResult, err := svc.Send(context.Background(), SendInput{
		SenderID: "alice", ConversationID: "conv-1",
		Content: &content, Attachments: attachments,
	})
	if err != nil {
		t.Fatalf("fallback send: %v", err)
	}

	if liveResult.Path != PathLive {
		t.Fatalf("live path = %q, want %q", liveResult.Path, PathLive)
	}
	if fallbackResult.Path != PathFallback {
		t.Fatalf("fallback path = %q, want %q", fallbackResult.Path, PathFallback)
	}

	stored := store.messagesFor("conv-1")
	if len(stored) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(stored))
	}
	first, second := stored[0], stored[1]
	if !second.CreatedAt.After(first.CreatedAt) {
		t.Fatalf("created_at not increasing: %v then %v", first.CreatedAt, second.CreatedAt)
	}
	first.ID, second.ID = "", ""
	first.CreatedAt, second.CreatedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("stored shapes differ:\n live     %+v\n fallback %+v", first, second)
	}
	if first.Kind != KindImage {
		t.Fatalf("inferred kind = %q, want %q", first.Kind, KindImage)
	}
	if first.Content == nil || *first.Content != "see you soon" {
		t.Fatalf("content = %v, want trimmed text", first.Content)
	}
	if first.Attachments[0].MimeType != "image/png" {
		t.Fatalf("mime type = %q, want lower-cased", first.Attachments[0].MimeType)
	}

	page, err := svc.ListMessages(context.Background(), "bob", "conv-1", "", 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(page.Messages) != 2 || page.Messages[0].ID != "msg-2" || page.Messages[1].ID != "msg-1" {
		t.Fatalf("listed = %+v, want [msg-2 msg-1]", page.Messages)
	}
}

func TestSendFansOutToOtherParticipantsOnly(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addConversation(Conversation{ID: "conv-1", Participants: []string{"alice", "bob", "carol"}})
	fanout := &recordingFanout{reach: 3}
	svc := NewService(store, nil, fanout, fixedClock(time.Now()), sequentialIDGenerator("msg-1"))

	text := "hi"
	result, err := svc.Send(context.Background(), SendInput{SenderID: "alice", ConversationID: "conv-1", Content: &text})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Delivered != 3 {
		t.Fatalf("delivered = %d, want 3", result.Delivered)
	}
	if len(fanout.calls) != 1 {
		t.Fatalf("fanout calls = %d, want 1", len(fanout.calls))
	}
	recipients := append([]string(nil), fanout.calls[0]...)
	sort.Strings(recipients)
	if !reflect.DeepEqual(recipients, []string{"bob", "carol"}) {
		t.Fatalf("recipients = %v, want [bob carol]", recipients)
	}
	if result.Message.Kind != KindText {
		t.Fatalf("kind = %q, want TEXT", result.Message.Kind)
	}
}

func TestSendStaleConnectionFallsBack(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addConversation(Conversation{ID: "conv-1", Participants: []string{"alice", "bob"}})
	live := fakeLive{"alice": {"conn-1": true}}
	svc := NewService(store, live, nil, fixedClock(time.Now()), sequentialIDGenerator("msg-1", "msg-2"))

	text := "hi"
	result, err := svc.Send(context.Background(), SendInput{SenderID: "alice", ConversationID: "conv-1", ConnectionID: "conn-gone", Content: &text})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Path != PathFallback {
		t.Fatalf("path = %q, want fallback", result.Path)
	}

	// Bob cannot claim Alice's session.
	result, err = svc.Send(context.Background(), SendInput{SenderID: "bob", ConversationID: "conv-1", ConnectionID: "conn-1", Content: &text})
	if err != nil {
		t.Fatalf("send as bob: %v", err)
	}
	if result.Path != PathFallback {
		t.Fatalf("foreign session path = %q, want fallback", result.Path)
	}
}

func TestSendRejectsNonParticipantAndMissingConversation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addConversation(Conversation{ID: "conv-1", Participants: []string{"alice", "bob"}})
	fanout := &recordingFanout{}
	svc := NewService(store, nil, fanout, fixedClock(time.Now()), sequentialIDGenerator("msg-1"))

	text := "hi"
	if _, err := svc.Send(context.Background(), SendInput{SenderID: "mallory", ConversationID: "conv-1", Content: &text}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-participant err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Send(context.Background(), SendInput{SenderID: "alice", ConversationID: "missing", Content: &text}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing conversation err = %v, want ErrNotFound", err)
	}
	if len(store.messagesFor("conv-1")) != 0 || len(fanout.calls) != 0 {
		t.Fatal("rejected sends must not store or fan out")
	}
}

func TestSendValidatesBody(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addConversation(Conversation{ID: "conv-1", Participants: []string{"alice", "bob"}})
	svc := NewService(store, nil, nil, fixedClock(time.Now()), sequentialIDGenerator("msg-1"))

	blank := "   "
	text := "hi"
	tooLong := strings.Repeat("x", 4001)

	tests := []struct {
		name  string
		input SendInput
		want  error
	}{
		{name: "missing sender", input: SendInput{ConversationID: "conv-1", Content: &text}, want: ErrUserIDRequired},
		{name: "missing conversation", input: SendInput{SenderID: "alice", Content: &text}, want: ErrConversationIDRequired},
		{name: "empty body", input: SendInput{SenderID: "alice", ConversationID: "conv-1", Content: &blank}, want: ErrInvalidMessage},
		{name: "unknown kind", input: SendInput{SenderID: "alice", ConversationID: "conv-1", Content: &text, Kind: "VIDEO"}, want: ErrInvalidMessage},
		{name: "image without attachments", input: SendInput{SenderID: "alice", ConversationID: "conv-1", Content: &text, Kind: KindImage}, want: ErrInvalidMessage},
		{name: "content too long", input: SendInput{SenderID: "alice", ConversationID: "conv-1", Content: &tooLong}, want: ErrInvalidMessage},
		{name: "bad attachment url", input: SendInput{SenderID: "alice", ConversationID: "conv-1", Attachments: []Attachment{{URL: "not a url", MimeType: "image/png"}}}, want: ErrInvalidMessage},
	}
	for _, tc := range tests {
		if _, err := svc.Send(context.Background(), tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if len(store.messagesFor("conv-1")) != 0 {
		t.Fatal("invalid sends must not store")
	}
}

func TestSendClientMessageIDIsIdempotentAcrossPaths(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addConversation(Conversation{ID: "conv-1", Participants: []string{"alice", "bob"}})
	live := fakeLive{"alice": {"conn-1": true}}
	fanout := &recordingFanout{reach: 1}
	svc := NewService(store, live, fanout, fixedClock(time.Now()), sequentialIDGenerator("msg-1", "msg-2"))

	text := "once"
	first, err := svc.Send(context.Background(), SendInput{SenderID: "alice", ConversationID: "conv-1", ConnectionID: "conn-1", ClientMessageID: "c-1", Content: &text})
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	retry, err := svc.Send(context.Background(), SendInput{SenderID: "alice", ConversationID: "conv-1", ClientMessageID: "c-1", Content: &text})
	if err != nil {
		t.Fatalf("retry send: %v", err)
	}
	if first.Duplicate || !retry.Duplicate {
		t.Fatalf("duplicate flags = %v/%v, want false/true", first.Duplicate, retry.Duplicate)
	}
	if retry.Message.ID != first.Message.ID {
		t.Fatalf("retry id = %q, want %q", retry.Message.ID, first.Message.ID)
	}
	if retry.Path != PathFallback {
		t.Fatalf("retry path = %q, want fallback", retry.Path)
	}
	if len(fanout.calls) != 1 {
		t.Fatalf("fanout calls = %d, want 1", len(fanout.calls))
	}
	if len(store.messagesFor("conv-1")) != 1 {
		t.Fatalf("stored = %d, want 1", len(store.messagesFor("conv-1")))
	}
}

func TestSendPersistenceFailureSkipsFanout(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addConversation(Conversation{ID: "conv-1", Participants: []string{"alice", "bob"}})
	store.putErr = errors.New("disk full")
	fanout := &recordingFanout{reach: 1}
	svc := NewService(store, nil, fanout, fixedClock(time.Now()), sequentialIDGenerator("msg-1"))

	text := "hi"
	if _, err := svc.Send(context.Background(), SendInput{SenderID: "alice", ConversationID: "conv-1", Content: &text}); err == nil {
		t.Fatal("expected persistence error")
	}
	if len(fanout.calls) != 0 {
		t.Fatalf("fanout calls = %d, want 0", len(fanout.calls))
	}
}

func TestGetOrCreateDirect(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, nil, nil, fixedClock(time.Now()), sequentialIDGenerator("conv-1", "conv-2"))

	created, isNew, err := svc.GetOrCreateDirect(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !isNew || created.ID != "conv-1" || created.DirectKey != "alice|bob" {
		t.Fatalf("created = %+v (new=%v)", created, isNew)
	}

	again, isNew, err := svc.GetOrCreateDirect(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if isNew || again.ID != "conv-1" {
		t.Fatalf("again = %+v (new=%v), want existing conv-1", again, isNew)
	}

	if _, _, err := svc.GetOrCreateDirect(context.Background(), "alice", "alice"); !errors.Is(err, ErrSelfConversation) {
		t.Fatalf("self err = %v, want ErrSelfConversation", err)
	}
	if _, _, err := svc.GetOrCreateDirect(context.Background(), "alice", " "); !errors.Is(err, ErrPeerIDRequired) {
		t.Fatalf("empty peer err = %v, want ErrPeerIDRequired", err)
	}
}

func TestListMessagesPaginatesAndGuardsMembership(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addConversation(Conversation{ID: "conv-1", Participants: []string{"alice", "bob"}})
	svc := NewService(store, nil, nil, fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)), sequentialIDGenerator("m-1", "m-2", "m-3"))

	text := "x"
	for i := 0; i < 3; i++ {
		if _, err := svc.Send(context.Background(), SendInput{SenderID: "alice", ConversationID: "conv-1", Content: &text}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	pageOne, err := svc.ListMessages(context.Background(), "bob", "conv-1", "", 2)
	if err != nil {
		t.Fatalf("page one: %v", err)
	}
	if len(pageOne.Messages) != 2 || pageOne.Messages[0].ID != "m-3" || pageOne.NextCursor == "" {
		t.Fatalf("page one = %+v", pageOne)
	}
	pageTwo, err := svc.ListMessages(context.Background(), "bob", "conv-1", pageOne.NextCursor, 2)
	if err != nil {
		t.Fatalf("page two: %v", err)
	}
	if len(pageTwo.Messages) != 1 || pageTwo.Messages[0].ID != "m-1" || pageTwo.NextCursor != "" {
		t.Fatalf("page two = %+v", pageTwo)
	}

	if _, err := svc.ListMessages(context.Background(), "mallory", "conv-1", "", 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("outsider err = %v, want ErrNotFound", err)
	}
	if _, err := svc.ListMessages(context.Background(), "bob", "missing", "", 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing conversation err = %v, want ErrNotFound", err)
	}
	if _, err := svc.ListMessages(context.Background(), "bob", "conv-1", "%%%", 2); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("bad cursor err = %v, want ErrInvalidCursor", err)
	}
}

func TestListConversationsClampsLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, nil, nil, nil, nil)

	if _, err := svc.ListConversations(context.Background(), "alice", 1000); err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if store.lastLimit != MaxPageSize {
		t.Fatalf("limit = %d, want %d", store.lastLimit, MaxPageSize)
	}
	if _, err := svc.ListConversations(context.Background(), "alice", 0); err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if store.lastLimit != DefaultPageSize {
		t.Fatalf("limit = %d, want %d", store.lastLimit, DefaultPageSize)
	}
}

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	t.Parallel()

	if DirectKey("b", "a") != DirectKey("a", "b") {
		t.Fatal("direct key depends on argument order")
	}
}

type fakeLive map[string]map[string]bool

func (f fakeLive) HasConnection(userID string, connectionID string) bool {
	return f[userID][connectionID]
}

type recordingFanout struct {
	mu    sync.Mutex
	reach int
	calls [][]string
}

func (f *recordingFanout) PushChatMessage(_ context.Context, recipients []string, _ Message) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), recipients...))
	return f.reach
}

type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]Conversation
	messages      []Message
	putErr        error
	lastLimit     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: map[string]Conversation{}}
}

func (f *fakeStore) addConversation(conversation Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conversation.ID] = conversation
}

func (f *fakeStore) messagesFor(conversationID string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, message := range f.messages {
		if message.ConversationID == conversationID {
			out = append(out, message)
		}
	}
	return out
}

func (f *fakeStore) PutConversation(_ context.Context, conversation Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.conversations {
		if conversation.DirectKey != "" && existing.DirectKey == conversation.DirectKey {
			return ErrConflict
		}
	}
	f.conversations[conversation.ID] = conversation
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, conversationID string) (Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conversation, ok := f.conversations[conversationID]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return conversation, nil
}

func (f *fakeStore) GetConversationByDirectKey(_ context.Context, directKey string) (Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conversation := range f.conversations {
		if conversation.DirectKey == directKey {
			return conversation, nil
		}
	}
	return Conversation{}, ErrNotFound
}

func (f *fakeStore) ListConversationsByParticipant(_ context.Context, userID string, limit int) ([]Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	var out []Conversation
	for _, conversation := range f.conversations {
		if conversation.HasParticipant(userID) {
			out = append(out, conversation)
		}
	}
	return out, nil
}

func (f *fakeStore) PutMessage(_ context.Context, message Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	for _, existing := range f.messages {
		if message.ClientMessageID != "" &&
			existing.ConversationID == message.ConversationID &&
			existing.SenderID == message.SenderID &&
			existing.ClientMessageID == message.ClientMessageID {
			return ErrConflict
		}
	}
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeStore) GetMessageByClientID(_ context.Context, conversationID string, senderID string, clientMessageID string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, message := range f.messages {
		if message.ConversationID == conversationID && message.SenderID == senderID && message.ClientMessageID == clientMessageID {
			return message, nil
		}
	}
	return Message{}, ErrNotFound
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID string, limit int, before *pagination.Cursor) (StoreMessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matching []Message
	for _, message := range f.messages {
		if message.ConversationID != conversationID {
			continue
		}
		if before != nil && !olderThan(message, *before) {
			continue
		}
		matching = append(matching, message)
	}
	sort.Slice(matching, func(i, j int) bool {
		if matching[i].CreatedAt.Equal(matching[j].CreatedAt) {
			return matching[i].ID > matching[j].ID
		}
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})
	page := StoreMessagePage{Messages: matching}
	if len(matching) > limit {
		last := matching[limit-1]
		page.Messages = matching[:limit]
		page.Next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return page, nil
}

func olderThan(message Message, cursor pagination.Cursor) bool {
	if message.CreatedAt.Equal(cursor.CreatedAt) {
		return message.ID < cursor.ID
	}
	return message.CreatedAt.Before(cursor.CreatedAt)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	index := 0
	return func() (string, error) {
		if index >= len(ids) {
			return "", errors.New("id generator exhausted")
		}
		value := ids[index]
		index++
		return value, nil
	}
}
