package http

import (
	"encoding/json"
	"net/http"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/interfaces"
)

// BoardHandler serves the locally reconciled state to wall displays and
// probes. Everything here is read-only: mutation flows through the order
// service, never through this surface.
type BoardHandler struct {
	orders  interfaces.OrderSource
	queues  interfaces.QueueSource
	channel interfaces.ChannelState
	logger  logger.Logger
}

func NewBoardHandler(orders interfaces.OrderSource, queues interfaces.QueueSource, channel interfaces.ChannelState, lgr logger.Logger) *BoardHandler {
	return &BoardHandler{
		orders:  orders,
		queues:  queues,
		channel: channel,
		logger:  lgr,
	}
}

func (h *BoardHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"orders": h.orders.Snapshot(),
	})
}

func (h *BoardHandler) GetKitchenQueues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.queues == nil {
		http.Error(w, "Kitchen view not enabled", http.StatusNotFound)
		return
	}

	writeJSON(w, h.queues.Queues())
}

func (h *BoardHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]interface{}{
		"connected": h.channel.Connected(),
		"rooms":     h.channel.Rooms(),
	}
	if err := h.channel.LastError(); err != nil {
		resp["last_error"] = err.Error()
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
