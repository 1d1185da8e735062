package channel

import (
	"net/http"
	"strconv"

	"joyrelay/internal/metrics"
)

const defaultPollLimit = 5

type pollResponse struct {
	Messages any  `json:"messages"`
	Count    int  `json:"count"`
	Total    int  `json:"total"`
	Waiting  bool `json:"waiting"`
}

// handleMessages serves the device poll: ?limit=5&since_id=0.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultPollLimit)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "limit must be an integer")
		return
	}
	sinceID, err := int64Param(q.Get("since_id"), 0)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "since_id must be an integer")
		return
	}

	snap := g.mailbox.Poll(limit, sinceID)
	writeJSON(w, http.StatusOK, pollResponse{
		Messages: snap.Messages,
		Count:    len(snap.Messages),
		Total:    snap.Total,
		Waiting:  snap.Waiting,
	})
}

func (g *Gateway) handleLatest(w http.ResponseWriter, r *http.Request) {
	rec, ok := g.mailbox.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"message": nil})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (g *Gateway) handleClear(w http.ResponseWriter, r *http.Request) {
	g.mailbox.Clear()
	metrics.MailboxRecords.Set(0)
	g.logger.Info("mailbox cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func int64Param(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
