package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/yussieik/pazpaz-sub015/payments"
	"github.com/yussieik/pazpaz-sub015/utils"
)

// Orch is the process-wide payment orchestrator, set once from main before the
// router starts serving.
var Orch *payments.Orchestrator

func SetOrchestrator(o *payments.Orchestrator) {
	Orch = o
}

type createPaymentBody struct {
	BookingID  uint   `json:"bookingId"`
	PayerEmail string `json:"payerEmail"`
}

// POST /api/v1/payments
func CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := utils.GetWorkspaceID(r)
	if !ok || workspaceID == 0 {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Access denied"})
		return
	}

	var body createPaymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON"})
		return
	}
	if body.BookingID == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "bookingId is required"})
		return
	}

	txn, err := Orch.CreatePaymentRequest(r.Context(), workspaceID, body.BookingID, body.PayerEmail)
	if err != nil {
		var provErr *payments.ProviderError
		switch {
		case errors.Is(err, payments.ErrNotFound):
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Booking not found"})
		case errors.Is(err, payments.ErrNoPrice):
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Booking has no price"})
		case errors.Is(err, payments.ErrProviderNotConfigured):
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Payments are not configured for this workspace"})
		case errors.As(err, &provErr):
			// The failed attempt was persisted; surface it so the client can retry.
			utils.WriteJSON(w, http.StatusBadGateway, utils.APIResponse{Success: false, Message: "Payment provider error", Data: txn})
		default:
			log.Printf("[payments] create request workspace=%d booking=%d: %v", workspaceID, body.BookingID, err)
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Internal server error"})
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Payment link created", Data: txn})
}

// GET /api/v1/bookings/{id}/payments
func ListBookingPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := utils.GetWorkspaceID(r)
	if !ok || workspaceID == 0 {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Access denied"})
		return
	}

	bookingID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || bookingID == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid booking id"})
		return
	}

	txns, err := Orch.ListBookingTransactions(r.Context(), workspaceID, uint(bookingID))
	if err != nil {
		if errors.Is(err, payments.ErrNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Booking not found"})
			return
		}
		log.Printf("[payments] list for booking %d: %v", bookingID, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Internal server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"transactions": txns,
		},
	})
}

// ProviderWebhookHandler handles POST /api/v1/callback/{provider}. Providers keep
// retrying on non-2xx, so anything that ran the signature check answers 200; only
// a claim-store outage gets a 503 so the provider re-delivers later.
func ProviderWebhookHandler(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid body"})
		return
	}

	_, err = Orch.ProcessWebhook(r.Context(), provider, body, r.Header)
	if err != nil {
		var unknown *payments.UnknownProviderError
		switch {
		case errors.As(err, &unknown):
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Unknown provider"})
			return
		case errors.Is(err, payments.ErrIdempotencyUnavailable):
			log.Printf("[webhook] claim store unavailable provider=%s: %v", provider, err)
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.APIResponse{Success: false, Message: "Temporarily unavailable"})
			return
		default:
			// Rejections (bad signature, unroutable event, stale transition) were
			// already logged and audited inside ProcessWebhook. Acknowledge so the
			// provider stops retrying a delivery that will never apply.
			log.Printf("[webhook] provider=%s not applied: %v", provider, err)
		}
	}

	if utils.ArchiveEnabled() {
		sum := sha256.Sum256(body)
		payloadHash := hex.EncodeToString(sum[:8])
		payload := make([]byte, len(body))
		copy(payload, body)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := utils.ArchiveWebhookPayload(ctx, provider, payloadHash, payload); err != nil {
				log.Printf("[webhook] archive provider=%s: %v", provider, err)
			}
		}()
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK"})
}

// POST /api/v1/cron/poll-pending
func CronPollPendingHandler(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-CRON-KEY")
	if key == "" || key != os.Getenv("CRON_KEY") {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	olderThan := 15 * time.Minute
	if s := r.URL.Query().Get("older_than_min"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			olderThan = time.Duration(v) * time.Minute
		}
	}

	applied, err := Orch.PollPending(r.Context(), olderThan)
	if err != nil {
		log.Printf("[cron] poll-pending: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Internal server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "OK",
		Data:    map[string]interface{}{"applied": applied},
	})
}

// POST /api/v1/cron/expire-pending
func CronExpirePendingHandler(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-CRON-KEY")
	if key == "" || key != os.Getenv("CRON_KEY") {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	cancelled, err := Orch.ExpirePending(r.Context())
	if err != nil {
		log.Printf("[cron] expire-pending: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Internal server error"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "OK",
		Data:    map[string]interface{}{"cancelled": cancelled},
	})
}
