package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lumen/lumen/config"
	"lumen/lumen/controllers"
	"lumen/lumen/services/llm"
	"lumen/lumen/sources/psql"
	"lumen/lumen/sources/psql/dao"
	"lumen/lumen/sources/psql/models"
	"lumen/lumen/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// --- Helpers ---

type fixedLLM struct{ reply string }

func (f *fixedLLM) Run(ctx context.Context, req llm.ChatRequest) (string, error) {
	return f.reply, nil
}

func (f *fixedLLM) RunStream(ctx context.Context, req llm.ChatRequest) (<-chan string, error) {
	ch := make(chan string, 1)
	ch <- f.reply
	close(ch)
	return ch, nil
}

type testEnv struct {
	router http.Handler
	cfg    config.Config
	users  *dao.UserDAO
	chats  *dao.ChatDAO
}

func setupEnv(t *testing.T) *testEnv {
	logging.InitLogger()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := psql.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	cfg := config.Config{JWTSecret: "test-secret"}
	chatDAO := dao.NewChatDAO(db)
	ctrl := controllers.NewChatController(chatDAO, &fixedLLM{reply: "ok"}, "test-model", nil)

	r := chi.NewRouter()
	r.Mount("/chats", ChatRoutes(ctrl, cfg))

	return &testEnv{router: r, cfg: cfg, users: dao.NewUserDAO(db), chats: chatDAO}
}

func (e *testEnv) newUser(t *testing.T, name string) (*models.User, string) {
	user, err := e.users.CreateUser(context.Background(), name, name+"@example.com", false)
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(e.cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) makeChat(t *testing.T, token, title string) uuid.UUID {
	rr := e.do(t, "POST", "/chats/", token, `{"title":"`+title+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("create chat returned %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Chat models.Chat `json:"chat"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad create response: %v", err)
	}
	return resp.Chat.ID
}

// --- Tests ---

func TestRequestsWithoutSessionAreUnauthorized(t *testing.T) {
	env := setupEnv(t)
	for _, c := range []struct{ method, path string }{
		{"GET", "/chats/"},
		{"POST", "/chats/"},
		{"PATCH", "/chats/" + uuid.New().String()},
		{"DELETE", "/chats/" + uuid.New().String()},
	} {
		rr := env.do(t, c.method, c.path, "", "")
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", c.method, c.path, rr.Code)
		}
	}
}

func TestCreateChatEmptyTitle(t *testing.T) {
	env := setupEnv(t)
	_, token := env.newUser(t, "alice")
	rr := env.do(t, "POST", "/chats/", token, `{"title":"   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty title, got %d", rr.Code)
	}
}

func TestListChatsReflectsCreates(t *testing.T) {
	env := setupEnv(t)
	_, token := env.newUser(t, "alice")
	env.makeChat(t, token, "First")
	env.makeChat(t, token, "Second")

	rr := env.do(t, "GET", "/chats/", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list returned %d", rr.Code)
	}
	var resp struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad list response: %v", err)
	}
	if len(resp.Chats) != 2 {
		t.Errorf("expected 2 chats, got %d", len(resp.Chats))
	}
}

func TestPinRejectsNonBoolean(t *testing.T) {
	env := setupEnv(t)
	_, token := env.newUser(t, "alice")
	chatID := env.makeChat(t, token, "Chat")

	// String "true" is not a boolean.
	rr := env.do(t, "PATCH", "/chats/"+chatID.String()+"/pin", token, `{"pinned":"true"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf(`expected 400 for "true", got %d`, rr.Code)
	}

	// Missing field is not a boolean either.
	rr = env.do(t, "PATCH", "/chats/"+chatID.String()+"/pin", token, `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing pinned, got %d", rr.Code)
	}
}

func TestPinFalsePersists(t *testing.T) {
	env := setupEnv(t)
	_, token := env.newUser(t, "alice")
	chatID := env.makeChat(t, token, "Chat")

	rr := env.do(t, "PATCH", "/chats/"+chatID.String()+"/pin", token, `{"pinned":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("pin true returned %d", rr.Code)
	}
	rr = env.do(t, "PATCH", "/chats/"+chatID.String()+"/pin", token, `{"pinned":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("pin false returned %d", rr.Code)
	}
	var resp struct {
		Chat models.Chat `json:"chat"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad pin response: %v", err)
	}
	if resp.Chat.Pinned {
		t.Errorf("explicit false must persist")
	}
}

func TestNonOwnerGetsForbidden(t *testing.T) {
	env := setupEnv(t)
	_, aliceToken := env.newUser(t, "alice")
	_, bobToken := env.newUser(t, "bob")
	chatID := env.makeChat(t, aliceToken, "Alice's chat")

	cases := []struct{ method, path, body string }{
		{"GET", "/chats/" + chatID.String(), ""},
		{"PATCH", "/chats/" + chatID.String(), `{"title":"Stolen"}`},
		{"DELETE", "/chats/" + chatID.String(), ""},
		{"PATCH", "/chats/" + chatID.String() + "/pin", `{"pinned":true}`},
		{"POST", "/chats/" + chatID.String() + "/share", ""},
	}
	for _, c := range cases {
		rr := env.do(t, c.method, c.path, bobToken, c.body)
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s %s: expected 403, got %d", c.method, c.path, rr.Code)
		}
	}
}

func TestUnknownChatIsNotFound(t *testing.T) {
	env := setupEnv(t)
	_, token := env.newUser(t, "alice")
	rr := env.do(t, "GET", "/chats/"+uuid.New().String(), token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestShareIsIdempotentOverHTTP(t *testing.T) {
	env := setupEnv(t)
	_, token := env.newUser(t, "alice")
	chatID := env.makeChat(t, token, "Chat")

	for i := 0; i < 2; i++ {
		rr := env.do(t, "POST", "/chats/"+chatID.String()+"/share", token, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("share call %d returned %d", i+1, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"public"`) {
			t.Errorf("share call %d: chat not public in response", i+1)
		}
	}
}

func TestCascadeDeleteOverHTTP(t *testing.T) {
	env := setupEnv(t)
	_, token := env.newUser(t, "alice")
	chatID := env.makeChat(t, token, "Chat")

	var ids []uuid.UUID
	for _, text := range []string{"m1", "m2", "m3", "m4", "m5"} {
		msg, err := env.chats.SaveMessage(context.Background(), chatID, models.RoleUser,
			models.PartList{models.TextPart(text)}, uuid.Nil)
		if err != nil {
			t.Fatalf("seed message failed: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	rr := env.do(t, "DELETE", "/chats/"+chatID.String()+"/messages/"+ids[2].String()+"/after", token, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	msgs, err := env.chats.GetMessages(context.Background(), chatID)
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected messages 1-2 to survive, got %d", len(msgs))
	}
	if msgs[0].ID != ids[0] || msgs[1].ID != ids[1] {
		t.Errorf("wrong messages survived")
	}
}

func TestDeleteChatReturnsSuccess(t *testing.T) {
	env := setupEnv(t)
	_, token := env.newUser(t, "alice")
	chatID := env.makeChat(t, token, "Chat")

	rr := env.do(t, "DELETE", "/chats/"+chatID.String(), token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"success":true`) {
		t.Errorf("expected success body, got %s", rr.Body.String())
	}

	rr = env.do(t, "GET", "/chats/"+chatID.String(), token, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("deleted chat should 404, got %d", rr.Code)
	}
}
