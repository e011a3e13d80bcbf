package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

func newTestServer(t *testing.T, questionCount int) *httptest.Server {
	t.Helper()
	hub := app.NewHub()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions(questionCount)), time.Minute)
	service := app.NewDuelService(memory.NewDuelStore(), questions, memory.NewLocker(), app.WithEvents(hub))
	server := httptest.NewServer(NewHandler(service, hub, zap.NewNop()).Routes())
	t.Cleanup(server.Close)
	return server
}

// sampleQuestions all accept "42" so clients can answer without seeing the key.
func sampleQuestions(n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Question{
			ID:             fmt.Sprintf("q%d", i),
			Body:           fmt.Sprintf("Question %d?", i),
			CorrectAnswers: []string{"42"},
		})
	}
	return out
}

func doRequest(t *testing.T, server *httptest.Server, method, path, participant string, body any, dst any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if participant != "" {
		req.Header.Set(ParticipantHeader, participant)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestDuelHTTPFlow(t *testing.T) {
	server := newTestServer(t, 10)

	var pending domain.DuelSummary
	if status := doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/connection", "u1", nil, &pending); status != http.StatusOK {
		t.Fatalf("expected 200 on connect, got %d", status)
	}
	if pending.Status != domain.StatusPendingSecondPlayer {
		t.Fatalf("expected pending duel, got %s", pending.Status)
	}
	if status := doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/connection", "u1", nil, nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 on second connect, got %d", status)
	}

	var active domain.DuelSummary
	doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/connection", "u2", nil, &active)
	if active.ID != pending.ID || active.Status != domain.StatusActive || len(active.Questions) != 5 {
		t.Fatalf("expected active duel %s with questions, got %+v", pending.ID, active)
	}

	var current domain.DuelSummary
	if status := doRequest(t, server, http.MethodGet, "/pair-game-quiz/pairs/my-current", "u1", nil, &current); status != http.StatusOK || current.ID != pending.ID {
		t.Fatalf("expected current duel, got status=%d %+v", status, current)
	}
	if status := doRequest(t, server, http.MethodGet, "/pair-game-quiz/pairs/"+pending.ID, "u3", nil, nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", status)
	}
	if status := doRequest(t, server, http.MethodGet, "/pair-game-quiz/pairs/missing", "u1", nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown duel, got %d", status)
	}

	for i := 0; i < domain.QuestionsPerDuel; i++ {
		var result domain.AnswerResult
		if status := doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", "u1", answerRequest{Answer: " 42 "}, &result); status != http.StatusOK {
			t.Fatalf("expected 200 on answer, got %d", status)
		}
		if result.AnswerStatus != domain.AnswerCorrect {
			t.Fatalf("expected correct answer, got %+v", result)
		}
		doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", "u2", answerRequest{Answer: "nope"}, nil)
	}
	if status := doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", "u1", answerRequest{Answer: "42"}, nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 after the duel finished, got %d", status)
	}

	var finished domain.DuelSummary
	doRequest(t, server, http.MethodGet, "/pair-game-quiz/pairs/"+pending.ID, "u2", nil, &finished)
	if finished.Status != domain.StatusFinished || finished.FirstPlayerProgress.Score != 6 {
		t.Fatalf("expected finished duel with 6 points for u1, got %+v", finished)
	}
	if status := doRequest(t, server, http.MethodGet, "/pair-game-quiz/pairs/my-current", "u1", nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 without a live duel, got %d", status)
	}

	var stats domain.Statistics
	doRequest(t, server, http.MethodGet, "/pair-game-quiz/users/my-statistic", "u1", nil, &stats)
	if stats.GamesCount != 1 || stats.WinsCount != 1 || stats.SumScore != 6 {
		t.Fatalf("unexpected statistics %+v", stats)
	}

	var mine domain.Page[domain.DuelSummary]
	doRequest(t, server, http.MethodGet, "/pair-game-quiz/pairs/my?pageSize=1&sortBy=status&sortDirection=asc", "u2", nil, &mine)
	if mine.TotalCount != 1 || mine.PageSize != 1 || len(mine.Items) != 1 {
		t.Fatalf("unexpected duel page %+v", mine)
	}

	var top domain.Page[domain.LeaderboardEntry]
	if status := doRequest(t, server, http.MethodGet, "/pair-game-quiz/users/top?sort=sumScore%20asc", "", nil, &top); status != http.StatusOK {
		t.Fatalf("expected public leaderboard, got %d", status)
	}
	if len(top.Items) != 2 || top.Items[0].Player.ID != "u2" {
		t.Fatalf("expected u2 first by ascending sum, got %+v", top.Items)
	}
}

func TestRequestsWithoutParticipantAreRejected(t *testing.T) {
	server := newTestServer(t, 10)
	if status := doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/connection", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestInvalidAnswerBody(t *testing.T) {
	server := newTestServer(t, 10)
	if status := doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", "u1", map[string]any{"text": "42"}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", status)
	}
	if status := doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/my-current/answers", "u1", answerRequest{Answer: "42"}, nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 without an active duel, got %d", status)
	}
}

func TestInsufficientQuestionsIsServerError(t *testing.T) {
	server := newTestServer(t, 2)
	doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/connection", "u1", nil, nil)
	if status := doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/connection", "u2", nil, nil); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
}

func TestOversizedPaginationReturnsEmptyPage(t *testing.T) {
	server := newTestServer(t, 10)
	doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/connection", "u1", nil, nil)
	doRequest(t, server, http.MethodPost, "/pair-game-quiz/pairs/connection", "u2", nil, nil)

	paths := []string{
		"/pair-game-quiz/pairs/my?pageNumber=922337203685477590&pageSize=10",
		"/pair-game-quiz/pairs/my?pageNumber=2&pageSize=9223372036854775807",
		"/pair-game-quiz/users/top?pageNumber=922337203685477590&pageSize=10",
	}
	for _, path := range paths {
		var page domain.Page[json.RawMessage]
		if status := doRequest(t, server, http.MethodGet, path, "u1", nil, &page); status != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, status)
		}
		if len(page.Items) != 0 {
			t.Fatalf("%s: expected no items, got %d", path, len(page.Items))
		}
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, 0)
	if status := doRequest(t, server, http.MethodGet, "/healthz", "", nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}
