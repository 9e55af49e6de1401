package routes

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"encrypted_match/circuits"
	"encrypted_match/models"
	"encrypted_match/mxe"
	"encrypted_match/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	router *mux.Router
	abort  *atomic.Bool
	engine *mxe.LocalEngine
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	abort := &atomic.Bool{}
	engine, err := mxe.NewLocalEngine(mxe.EngineConfig{
		Secret: bytes.Repeat([]byte{5}, mxe.KeySize),
		Abort:  func(mxe.Request) bool { return abort.Load() },
	})
	require.NoError(t, err)
	engine.Start(context.Background())
	t.Cleanup(func() { _ = engine.Close() })

	identity, err := services.NewIdentity(bytes.Repeat([]byte{6}, 32))
	require.NoError(t, err)

	svc := &services.MatchSessionService{
		Store:          services.NewMemorySessionStore(),
		Engine:         engine,
		Identity:       identity,
		FinalizePolicy: models.FinalizeWhenDecided,
	}

	r := mux.NewRouter()
	RegisterRoutes(r)
	RegisterSessionRoutes(r, svc, nil)
	return &apiEnv{router: r, abort: abort, engine: engine}
}

func (a *apiEnv) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))

	var out map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func like(user, target string, v bool) map[string]interface{} {
	return map[string]interface{}{"userId": user, "targetId": target, "like": v}
}

func TestSessionAPIMatchFlow(t *testing.T) {
	api := newAPI(t)

	code, body := api.do(t, http.MethodPost, "/api/sessions", map[string]string{"userA": "alice", "userB": "bob"})
	require.Equal(t, http.StatusCreated, code)
	key := body["sessionKey"].(string)
	require.NotEmpty(t, key)

	code, again := api.do(t, http.MethodPost, "/api/sessions", map[string]string{"userA": "bob", "userB": "alice"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, key, again["sessionKey"])
	assert.Equal(t, false, again["created"])

	code, body = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", like("alice", "bob", true))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "recorded", body["status"])

	code, body = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", like("alice", "bob", false))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "noop", body["status"])

	code, body = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", like("bob", "alice", true))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "mutual_interest", body["status"])

	code, body = api.do(t, http.MethodPost, "/api/sessions/"+key+"/check", map[string]string{"userId": "alice"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "matched", body["status"])
	assert.Equal(t, true, body["isMutualMatch"])
	assert.Equal(t, true, body["finalized"])

	code, body = api.do(t, http.MethodGet, "/api/sessions/"+key, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.SessionStateFinalized, body["state"])
	assert.NotContains(t, body, "encryptedState")
	assert.NotContains(t, body, "participantTags")

	code, _ = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", like("alice", "bob", true))
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(t, http.MethodGet, "/api/sessions/"+key+"/receipt", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSessionAPIErrors(t *testing.T) {
	api := newAPI(t)

	code, _ := api.do(t, http.MethodPost, "/api/sessions", map[string]string{"userA": "alice", "userB": "alice"})
	assert.Equal(t, http.StatusBadRequest, code)

	_, body := api.do(t, http.MethodPost, "/api/sessions", map[string]string{"userA": "alice", "userB": "bob"})
	key := body["sessionKey"].(string)

	code, _ = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", like("mallory", "bob", true))
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(t, http.MethodPost, "/api/sessions/"+key+"/check", map[string]string{"userId": "mallory"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(t, http.MethodPost, "/api/sessions/missing/likes", like("alice", "bob", true))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", map[string]string{"userId": "alice"})
	assert.Equal(t, http.StatusBadRequest, code)

	api.abort.Store(true)
	code, body = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", like("alice", "bob", true))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, true, body["retryable"])
}

func TestSessionAPISealedLike(t *testing.T) {
	api := newAPI(t)

	code, body := api.do(t, http.MethodGet, "/api/engine/publicKey", nil)
	require.Equal(t, http.StatusOK, code)
	raw, err := base64.StdEncoding.DecodeString(body["publicKey"].(string))
	require.NoError(t, err)
	require.Len(t, raw, 32)
	var enginePub [32]byte
	copy(enginePub[:], raw)
	assert.Equal(t, api.engine.PublicKey(), enginePub)

	_, body = api.do(t, http.MethodPost, "/api/sessions", map[string]string{"userA": "alice", "userB": "bob"})
	key := body["sessionKey"].(string)

	env, err := mxe.SealShared(enginePub, circuits.UserLikeAction{
		UserID:     mxe.ParticipantID("bob"),
		TargetID:   mxe.ParticipantID("alice"),
		LikeAction: true,
		Timestamp:  1,
	}, mxe.ActionAAD(key, mxe.ParticipantID("bob")))
	require.NoError(t, err)

	code, body = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", map[string]interface{}{
		"userId": "bob",
		"sealedAction": map[string][]byte{
			"publicKey":  env.PublicKey[:],
			"nonce":      env.Value.Nonce,
			"ciphertext": env.Value.Ciphertext,
		},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "recorded", body["status"])

	code, _ = api.do(t, http.MethodPost, "/api/sessions/"+key+"/likes", map[string]interface{}{
		"userId":       "bob",
		"sealedAction": map[string][]byte{"publicKey": {1, 2}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealth(t *testing.T) {
	api := newAPI(t)
	code, body := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestPrivacyPolicy(t *testing.T) {
	api := newAPI(t)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/privacy-policy", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Privacy Notice")
}
