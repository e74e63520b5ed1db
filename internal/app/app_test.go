package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chatrelay/pkg/ai"
	"chatrelay/pkg/domain"
	"chatrelay/pkg/store"
)

type stubGenerator struct {
	reply   string
	err     error
	calls   int
	history []ai.Turn
	model   ai.ModelConfig
	text    string
}

func (g *stubGenerator) Generate(_ context.Context, model ai.ModelConfig, history []ai.Turn, userText string) (string, error) {
	g.calls++
	g.model = model
	g.history = history
	g.text = userText
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func testRegistry(t *testing.T) *ai.Registry {
	t.Helper()
	r, err := ai.NewRegistry("gemini-1.5-flash", []ai.ModelConfig{
		{ID: "gemini-1.5-flash", Kind: ai.KindGoogle, Endpoint: "https://example.test/gen"},
		{ID: "llama3-70b-8192", Kind: ai.KindOpenAI, Endpoint: "https://example.test/chat", UpstreamModel: "llama3-70b-8192"},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func newTestApp(t *testing.T, gen *stubGenerator) *App {
	t.Helper()
	if gen.reply == "" && gen.err == nil {
		gen.reply = "stub reply"
	}
	sessions, err := store.NewJWTSessionStore("test-secret", time.Hour, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	a, err := New(Config{
		Store:            store.NewMemoryStore(),
		Sessions:         sessions,
		Generator:        gen,
		Registry:         testRegistry(t),
		FreeChatLimit:    3,
		FreeMessageLimit: 4,
		HistoryLimit:     20,
		FrontendOrigin:   "http://localhost:3000",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func signUpUser(t *testing.T, a *App, email string) domain.User {
	t.Helper()
	user, _, err := a.SignUp("Test User", email, "secret1")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	return user
}

func TestSignUpAndLogin(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user, token, err := a.SignUp("Alice", "Alice@Example.COM", "secret1")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.Role != domain.RoleFree {
		t.Fatalf("expected free role, got %q", user.Role)
	}
	if token == "" {
		t.Fatalf("no session token issued")
	}
	got, ok := a.UserFromToken(token)
	if !ok || got.ID != user.ID {
		t.Fatalf("token does not resolve to user")
	}

	if _, _, err := a.SignUp("Alice2", "alice@example.com", "secret1"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
	if _, _, err := a.Login("alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := a.Login("alice@example.com", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	_, token, err := a.SignUp("Bob", "bob@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := a.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.UserFromToken(token); ok {
		t.Fatalf("token still valid after logout")
	}
}

func TestLoginWithGoogleCreatesFederatedAccount(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	profile := GoogleProfile{
		Subject: "g-123",
		Email:   "Carol@example.com",
		Name:    "Carol",
		Raw:     map[string]any{"sub": "g-123", "picture": "https://img"},
	}
	user, token, err := a.LoginWithGoogle(profile)
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	if user.Provider != domain.ProviderGoogle || user.PasswordHash != "" {
		t.Fatalf("unexpected account shape: %+v", user)
	}
	if token == "" {
		t.Fatalf("no token issued")
	}
	// Password login on a federated account is rejected.
	if _, _, err := a.Login("carol@example.com", "anything"); !errors.Is(err, ErrPasswordNotSet) {
		t.Fatalf("expected ErrPasswordNotSet, got %v", err)
	}
	// Second federated login reuses the account.
	again, _, err := a.LoginWithGoogle(profile)
	if err != nil {
		t.Fatalf("second google login: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("federated login created a duplicate account")
	}
}

func TestChatLimitForFreeUsers(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "dora@example.com")
	for i := 0; i < 3; i++ {
		if _, err := a.CreateChat(user, ""); err != nil {
			t.Fatalf("create chat %d: %v", i, err)
		}
	}
	_, err := a.CreateChat(user, "")
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.Kind != LimitChats || limitErr.Limit != 3 || limitErr.Current != 3 {
		t.Fatalf("unexpected limit payload: %+v", limitErr)
	}

	// Premium lifts the cap.
	now := time.Now().UTC()
	end := now.Add(24 * time.Hour)
	user.Role = domain.RolePremium
	user.SubscriptionStart = &now
	user.SubscriptionEnd = &end
	if err := a.store.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if _, err := a.CreateChat(user, ""); err != nil {
		t.Fatalf("premium create chat: %v", err)
	}
}

func TestExpiredPremiumCountsAsFree(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "eve@example.com")
	past := time.Now().UTC().Add(-time.Hour)
	user.Role = domain.RolePremium
	user.SubscriptionEnd = &past
	if a.IsPremium(user) {
		t.Fatalf("expired subscription reported premium")
	}
}

func TestSendMessageFlow(t *testing.T) {
	gen := &stubGenerator{reply: "Hello back!"}
	a := newTestApp(t, gen)
	user := signUpUser(t, a, "frank@example.com")
	chat, err := a.CreateChat(user, "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if chat.Title != "New Chat" {
		t.Fatalf("unexpected default title %q", chat.Title)
	}

	res, err := a.SendMessage(context.Background(), user, chat.ID, "What is the capital of France?", "")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if res.UserMessage.Sender != domain.SenderUser || res.UserMessage.Model != nil {
		t.Fatalf("unexpected user message: %+v", res.UserMessage)
	}
	if res.AIMessage.Sender != domain.SenderAI || res.AIMessage.Text != "Hello back!" {
		t.Fatalf("unexpected ai message: %+v", res.AIMessage)
	}
	if res.AIMessage.Model == nil || *res.AIMessage.Model != "gemini-1.5-flash" {
		t.Fatalf("ai message missing default model id: %+v", res.AIMessage)
	}
	if res.Chat.Title != "What is the capital of France?" {
		t.Fatalf("title not renamed from first message: %q", res.Chat.Title)
	}
	if gen.model.ID != "gemini-1.5-flash" {
		t.Fatalf("default model not resolved: %q", gen.model.ID)
	}
	if len(gen.history) != 0 {
		t.Fatalf("first exchange should have empty history, got %d turns", len(gen.history))
	}

	// Second message keeps the title and carries history.
	res2, err := a.SendMessage(context.Background(), user, chat.ID, "And of Spain?", "llama3-70b-8192")
	if err != nil {
		t.Fatalf("second send: %v", err)
	}
	if res2.Chat.Title != "What is the capital of France?" {
		t.Fatalf("title changed on second message: %q", res2.Chat.Title)
	}
	if gen.model.ID != "llama3-70b-8192" {
		t.Fatalf("explicit model not resolved: %q", gen.model.ID)
	}
	if len(gen.history) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(gen.history))
	}
	if gen.history[0].Role != ai.RoleUser || gen.history[1].Role != ai.RoleAssistant {
		t.Fatalf("unexpected history roles: %+v", gen.history)
	}
}

func TestSendMessageTitleTruncation(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "grace@example.com")
	chat, _ := a.CreateChat(user, "")
	long := strings.Repeat("é", 60)
	res, err := a.SendMessage(context.Background(), user, chat.ID, long, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	want := strings.Repeat("é", 50) + "..."
	if res.Chat.Title != want {
		t.Fatalf("rune truncation wrong: got %d chars", len([]rune(res.Chat.Title)))
	}
}

func TestSendMessageKeepsUserMessageOnAIFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream exploded")}
	a := newTestApp(t, gen)
	user := signUpUser(t, a, "hank@example.com")
	chat, _ := a.CreateChat(user, "")

	_, err := a.SendMessage(context.Background(), user, chat.ID, "hello?", "")
	if !errors.Is(err, ErrAIResponseFailed) {
		t.Fatalf("expected ErrAIResponseFailed, got %v", err)
	}
	got, err := a.GetChat(user, chat.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Sender != domain.SenderUser {
		t.Fatalf("user message not durable: %+v", got.Messages)
	}
}

func TestSendMessageRejectsUnknownModel(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "iris@example.com")
	chat, _ := a.CreateChat(user, "")
	_, err := a.SendMessage(context.Background(), user, chat.ID, "hi", "gpt-9000")
	if !errors.Is(err, ai.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestMessageLimitCountsWholeChat(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	user := signUpUser(t, a, "judy@example.com")
	chat, _ := a.CreateChat(user, "")
	// Each send stores two messages, so two sends fill the cap of 4.
	for i := 0; i < 2; i++ {
		if _, err := a.SendMessage(context.Background(), user, chat.ID, "ping", ""); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if got, _ := a.store.CountMessagesByChat(chat.ID); got != 4 {
		t.Fatalf("expected 4 stored messages, got %d", got)
	}
	_, err := a.SendMessage(context.Background(), user, chat.ID, "one too many", "")
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.Kind != LimitMessages || limitErr.Limit != 4 || limitErr.Current != 4 {
		t.Fatalf("unexpected limit payload: %+v", limitErr)
	}
}

func TestChatOwnershipReadsAsNotFound(t *testing.T) {
	a := newTestApp(t, &stubGenerator{})
	owner := signUpUser(t, a, "kate@example.com")
	other := signUpUser(t, a, "leo@example.com")
	chat, _ := a.CreateChat(owner, "")

	if _, err := a.GetChat(other, chat.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound for foreign chat, got %v", err)
	}
	if err := a.DeleteChat(other, chat.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound on foreign delete, got %v", err)
	}
	if _, err := a.SendMessage(context.Background(), other, chat.ID, "hi", ""); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound on foreign send, got %v", err)
	}
}

func TestListChatsIncludesLatestMessage(t *testing.T) {
	a := newTestApp(t, &stubGenerator{reply: "pong"})
	user := signUpUser(t, a, "mary@example.com")
	chat, _ := a.CreateChat(user, "")
	if _, err := a.SendMessage(context.Background(), user, chat.ID, "ping", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	summaries, err := a.ListChats(user)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(summaries))
	}
	if summaries[0].LatestMessage == nil || summaries[0].LatestMessage.Text != "pong" {
		t.Fatalf("latest message missing or wrong: %+v", summaries[0].LatestMessage)
	}
}
