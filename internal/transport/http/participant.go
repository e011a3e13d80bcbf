package http

import (
	"context"
	"net/http"
	"strings"
)

// ParticipantHeader carries the caller's identity; authentication happens upstream.
const ParticipantHeader = "X-Participant-ID"

type contextKey string

const participantContextKey contextKey = "participant"

func requireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		participantID := strings.TrimSpace(r.Header.Get(ParticipantHeader))
		if participantID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing ` + ParticipantHeader + ` header"}` + "\n"))
			return
		}
		ctx := context.WithValue(r.Context(), participantContextKey, participantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func participantFrom(ctx context.Context) string {
	id, _ := ctx.Value(participantContextKey).(string)
	return id
}
