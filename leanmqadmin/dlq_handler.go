package leanmqadmin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leanmq-go/leanmq"
)

// dlqReprocessRequest is the JSON body for POST /dlq/{queue}/reprocess.
type dlqReprocessRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// dlqReprocessResponse is the JSON response for a DLQ reprocess operation.
type dlqReprocessResponse struct {
	Reprocessed int `json:"reprocessed"`
	Total       int `json:"total"`
}

// DLQReprocessHandler handles POST /dlq/{queue}/reprocess. It requeues the
// given message ids from {queue}'s dead-letter queue back to the main
// queue in bulk rather than one id at a time.
func DLQReprocessHandler(svc *leanmq.QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "queue")

		var req dlqReprocessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.MessageIDs) == 0 {
			respondError(w, http.StatusBadRequest, "message_ids is required and must not be empty")
			return
		}

		dlq, err := svc.GetDeadLetterQueue(r.Context(), name)
		if err != nil {
			respondError(w, http.StatusNotFound, "dead-letter queue not found")
			return
		}
		main, err := svc.GetQueue(r.Context(), name)
		if err != nil {
			respondError(w, http.StatusNotFound, "queue not found")
			return
		}

		reprocessed, err := dlq.RequeueMany(r.Context(), req.MessageIDs, main)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "reprocess failed")
			return
		}

		respondJSON(w, http.StatusOK, dlqReprocessResponse{
			Reprocessed: reprocessed,
			Total:       len(req.MessageIDs),
		})
	}
}
