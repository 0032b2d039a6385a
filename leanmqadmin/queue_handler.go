package leanmqadmin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leanmq-go/leanmq"
)

type queueSummary struct {
	Name          string `json:"name"`
	IsDLQ         bool   `json:"is_dlq"`
	ConsumerGroup string `json:"consumer_group,omitempty"`
	PairedDLQName string `json:"paired_dlq_name,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ListQueuesHandler handles GET /queues: a snapshot of every registered
// queue's registry metadata.
func ListQueuesHandler(svc *leanmq.QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metas, err := svc.ListQueues(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "list queues failed")
			return
		}
		out := make([]queueSummary, 0, len(metas))
		for _, m := range metas {
			out = append(out, queueSummary{
				Name:          m.Name,
				IsDLQ:         m.IsDLQ,
				ConsumerGroup: m.ConsumerGroup,
				PairedDLQName: m.PairedDLQName,
				CreatedAt:     m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// QueueInfoHandler handles GET /queues/{name}: a live introspection
// snapshot of a single queue.
func QueueInfoHandler(svc *leanmq.QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		q, err := svc.GetQueue(r.Context(), name)
		if err != nil {
			respondError(w, http.StatusNotFound, "queue not found")
			return
		}
		info, err := q.Info(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "queue info failed")
			return
		}
		respondJSON(w, http.StatusOK, info)
	}
}
