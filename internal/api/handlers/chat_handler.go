package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/appforge/engine/internal/api/types"
	"github.com/appforge/engine/internal/llm"
	"github.com/appforge/engine/pkg/logger"
)

const maxChatTokens = 1024

// ChatHandler streams assistant replies over SSE so users can refine a
// requirement before submitting it for deployment.
type ChatHandler struct {
	client llm.Client
}

func NewChatHandler(client llm.Client) *ChatHandler {
	return &ChatHandler{client: client}
}

func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorStr(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	err := h.client.Stream(r.Context(), []llm.Message{
		{Role: "user", Content: req.Message},
	}, maxChatTokens, func(text string) {
		b, _ := json.Marshal(map[string]string{"text": text})
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	})
	if err != nil {
		// Headers are gone; surface the failure as a terminal event.
		logger.L().Error("chat stream failed", zap.Error(err))
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", b)
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
