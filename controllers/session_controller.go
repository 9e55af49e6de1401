package controllers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"encrypted_match/circuits"
	"encrypted_match/mxe"
	"encrypted_match/services"
	"encrypted_match/utils"

	"github.com/gorilla/mux"
)

// SessionController handles HTTP requests for match sessions
type SessionController struct {
	Sessions *services.MatchSessionService
	Receipts *services.ReceiptArchive
}

// NewSessionController creates a new SessionController instance
func NewSessionController(sessions *services.MatchSessionService, receipts *services.ReceiptArchive) *SessionController {
	return &SessionController{Sessions: sessions, Receipts: receipts}
}

type createSessionRequest struct {
	UserA string `json:"userA"`
	UserB string `json:"userB"`
}

type sealedActionBody struct {
	PublicKey  []byte `json:"publicKey"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

type likeRequest struct {
	UserID       string            `json:"userId"`
	TargetID     string            `json:"targetId"`
	Like         *bool             `json:"like"`
	SealedAction *sealedActionBody `json:"sealedAction"`
}

type checkRequest struct {
	UserID string `json:"userId"`
}

// writeServiceError maps service failures to HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrComputationAborted):
		utils.WriteJSONError(w, http.StatusServiceUnavailable, "computation aborted, nothing was changed", map[string]interface{}{"retryable": true})
	case errors.Is(err, services.ErrUnauthorizedUser):
		utils.WriteJSONError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrReceiptNotFound):
		utils.WriteJSONError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, services.ErrSessionFinalized), errors.Is(err, services.ErrStaleSession):
		utils.WriteJSONError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidParticipants):
		utils.WriteJSONError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Printf("❌ Session request failed: %v", err)
		utils.WriteJSONError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// CreateSession handles POST /api/sessions
func (sc *SessionController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, http.StatusBadRequest, "invalid request payload", nil)
		return
	}

	res, err := sc.Sessions.CreateSession(r.Context(), req.UserA, req.UserB)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	utils.WriteJSON(w, status, res)
}

// GetSession handles GET /api/sessions/{sessionKey}
func (sc *SessionController) GetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := sc.Sessions.GetSession(r.Context(), mux.Vars(r)["sessionKey"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, rec)
}

// SubmitLike handles POST /api/sessions/{sessionKey}/likes. The action is
// either plain (sealed by the server) or already sealed by the client.
func (sc *SessionController) SubmitLike(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["sessionKey"]

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, http.StatusBadRequest, "invalid request payload", nil)
		return
	}
	if req.UserID == "" {
		utils.WriteJSONError(w, http.StatusBadRequest, "userId is required", nil)
		return
	}

	var (
		status circuits.LikeStatus
		err    error
	)
	switch {
	case req.SealedAction != nil:
		if len(req.SealedAction.PublicKey) != 32 {
			utils.WriteJSONError(w, http.StatusBadRequest, "sealedAction.publicKey must be 32 bytes", nil)
			return
		}
		var env mxe.SealedAction
		copy(env.PublicKey[:], req.SealedAction.PublicKey)
		env.Value.Nonce = req.SealedAction.Nonce
		env.Value.Ciphertext = req.SealedAction.Ciphertext
		status, err = sc.Sessions.SubmitSealedLike(r.Context(), key, req.UserID, env)
	case req.TargetID != "" && req.Like != nil:
		status, err = sc.Sessions.SubmitLike(r.Context(), key, req.UserID, req.TargetID, *req.Like)
	default:
		utils.WriteJSONError(w, http.StatusBadRequest, "either targetId and like, or sealedAction is required", nil)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": status.String(),
	})
}

// CheckMatch handles POST /api/sessions/{sessionKey}/check
func (sc *SessionController) CheckMatch(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["sessionKey"]

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, http.StatusBadRequest, "invalid request payload", nil)
		return
	}
	if err := sc.Sessions.Authorize(r.Context(), key, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	outcome, err := sc.Sessions.CheckMatch(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         outcome.Status.String(),
		"isMutualMatch":  outcome.IsMutualMatch,
		"matchTimestamp": outcome.MatchTimestamp,
		"finalized":      outcome.Finalized,
	})
}

// GetReceipt handles GET /api/sessions/{sessionKey}/receipt
func (sc *SessionController) GetReceipt(w http.ResponseWriter, r *http.Request) {
	if sc.Receipts == nil {
		utils.WriteJSONError(w, http.StatusNotFound, "receipts are not enabled", nil)
		return
	}
	key := mux.Vars(r)["sessionKey"]

	rec, err := sc.Sessions.GetSession(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !rec.IsFinalized {
		writeServiceError(w, services.ErrReceiptNotFound)
		return
	}

	url, err := sc.Receipts.GenerateReadURL(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// GetEnginePublicKey handles GET /api/engine/publicKey. Clients seal their
// like actions to this key.
func (sc *SessionController) GetEnginePublicKey(w http.ResponseWriter, r *http.Request) {
	pub := sc.Sessions.Engine.PublicKey()
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"publicKey": base64.StdEncoding.EncodeToString(pub[:]),
	})
}

func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to Encrypted Match\n"))
}
