package channel

import (
	"encoding/json"
	"io"
	"net/http"

	"joyrelay/internal/relay"
)

type chatRequest struct {
	Message   *string `json:"message"`
	MaxTokens int     `json:"max_tokens"`
}

type esp32Response struct {
	Chunks      []string `json:"chunks"`
	TotalChunks int      `json:"total_chunks"`
	FullText    string   `json:"full_text"`
}

// decodeChat writes a 422 and returns false when the body is unusable.
func (g *Gateway) decodeChat(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, gatewayMaxBodySize))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "cannot read body")
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON: "+err.Error())
		return req, false
	}
	if req.Message == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "message is required")
		return req, false
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = g.defaultMaxTokens
	}
	return req, true
}

// handleChat asks the responder directly, bypassing Telegram.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decodeChat(w, r)
	if !ok {
		return
	}
	reply := g.responder.Respond(r.Context(), *req.Message, req.MaxTokens)
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

// handleChatESP32 is handleChat with the reply split into display-sized
// chunks.
func (g *Gateway) handleChatESP32(w http.ResponseWriter, r *http.Request) {
	req, ok := g.decodeChat(w, r)
	if !ok {
		return
	}
	reply := g.responder.Respond(r.Context(), *req.Message, req.MaxTokens)
	chunks := relay.ChunkText(reply, g.chunkSize)
	writeJSON(w, http.StatusOK, esp32Response{
		Chunks:      chunks,
		TotalChunks: len(chunks),
		FullText:    reply,
	})
}
