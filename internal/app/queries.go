package app

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"quiz-duel-service/internal/domain"
)

const (
	defaultPageNumber = 1
	defaultPageSize   = 10
	maxPageSize       = 100
)

// SortDirection is "asc" or "desc".
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection defaults to descending for anything but "asc".
func ParseSortDirection(raw string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(raw), string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

// Pagination selects a 1-based page.
type Pagination struct {
	PageNumber int
	PageSize   int
}

func (p Pagination) normalized() Pagination {
	if p.PageNumber < 1 {
		p.PageNumber = defaultPageNumber
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	p.PageSize = min(p.PageSize, maxPageSize)
	return p
}

func paginate[T any](items []T, p Pagination) domain.Page[T] {
	p = p.normalized()
	total := len(items)
	start := total
	if p.PageNumber-1 <= total/p.PageSize {
		start = min((p.PageNumber-1)*p.PageSize, total)
	}
	end := start + min(p.PageSize, total-start)
	page := make([]T, end-start)
	copy(page, items[start:end])
	return domain.Page[T]{
		PagesCount: total/p.PageSize + min(total%p.PageSize, 1),
		Page:       p.PageNumber,
		PageSize:   p.PageSize,
		TotalCount: total,
		Items:      page,
	}
}

// Duel list sort fields.
const (
	SortByPairCreatedDate = "pairCreatedDate"
	SortByStatus          = "status"
	SortByStartGameDate   = "startGameDate"
	SortByFinishGameDate  = "finishGameDate"
)

// DuelListQuery pages through a participant's duels.
type DuelListQuery struct {
	Pagination
	SortBy        string
	SortDirection SortDirection
}

// ListDuels returns every duel the participant played, sorted and paginated.
func (s *DuelService) ListDuels(ctx context.Context, participantID string, q DuelListQuery) (domain.Page[domain.DuelSummary], error) {
	duels, err := s.duels.ListByParticipant(ctx, participantID)
	if err != nil {
		return domain.Page[domain.DuelSummary]{}, err
	}

	field := q.SortBy
	switch field {
	case SortByPairCreatedDate, SortByStatus, SortByStartGameDate, SortByFinishGameDate:
	default:
		field = SortByPairCreatedDate
	}
	direction := q.SortDirection
	if direction != SortAsc {
		direction = SortDesc
	}

	slices.SortStableFunc(duels, func(a, b domain.Duel) int {
		c := compareDuels(a, b, field)
		if direction == SortDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	summaries := make([]domain.DuelSummary, 0, len(duels))
	for _, d := range duels {
		summaries = append(summaries, d.Summary())
	}
	return paginate(summaries, q.Pagination), nil
}

func compareDuels(a, b domain.Duel, field string) int {
	switch field {
	case SortByStatus:
		return cmp.Compare(a.Status, b.Status)
	case SortByStartGameDate:
		return compareOptionalTime(a.StartedAt, b.StartedAt)
	case SortByFinishGameDate:
		return compareOptionalTime(a.FinishedAt, b.FinishedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// compareOptionalTime orders unset dates before set ones.
func compareOptionalTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// Statistics aggregates the participant's finished duels.
func (s *DuelService) Statistics(ctx context.Context, participantID string) (domain.Statistics, error) {
	duels, err := s.duels.ListByParticipant(ctx, participantID)
	if err != nil {
		return domain.Statistics{}, err
	}
	var stats domain.Statistics
	for _, d := range duels {
		if d.Status != domain.StatusFinished {
			continue
		}
		if p := d.PlayerOf(participantID); p != nil {
			stats.Add(*p)
		}
	}
	return stats, nil
}

// Leaderboard sort fields.
const (
	TopBySumScore    = "sumScore"
	TopByAvgScores   = "avgScores"
	TopByGamesCount  = "gamesCount"
	TopByWinsCount   = "winsCount"
	TopByLossesCount = "lossesCount"
	TopByDrawsCount  = "drawsCount"
)

// LeaderboardSort is one "<field> <direction>" item.
type LeaderboardSort struct {
	Field     string
	Direction SortDirection
}

// DefaultLeaderboardSort ranks by average score, then total score.
var DefaultLeaderboardSort = []LeaderboardSort{
	{Field: TopByAvgScores, Direction: SortDesc},
	{Field: TopBySumScore, Direction: SortDesc},
}

// ParseLeaderboardSort parses items like "avgScores desc"; unknown fields are dropped.
func ParseLeaderboardSort(items []string) []LeaderboardSort {
	out := make([]LeaderboardSort, 0, len(items))
	for _, item := range items {
		parts := strings.Fields(item)
		if len(parts) == 0 || leaderboardValue(domain.Statistics{}, parts[0]) == nil {
			continue
		}
		direction := SortDesc
		if len(parts) > 1 {
			direction = ParseSortDirection(parts[1])
		}
		out = append(out, LeaderboardSort{Field: parts[0], Direction: direction})
	}
	return out
}

// LeaderboardQuery pages through the top players.
type LeaderboardQuery struct {
	Pagination
	Sort []LeaderboardSort
}

// Leaderboard ranks participants by the totals the store keeps for finished duels.
func (s *DuelService) Leaderboard(ctx context.Context, q LeaderboardQuery) (domain.Page[domain.LeaderboardEntry], error) {
	byParticipant, err := s.duels.ListStatistics(ctx)
	if err != nil {
		return domain.Page[domain.LeaderboardEntry]{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(byParticipant))
	for participantID, stats := range byParticipant {
		entries = append(entries, domain.LeaderboardEntry{
			Statistics: stats,
			Player:     domain.PlayerRef{ID: participantID},
		})
	}

	order := q.Sort
	if len(order) == 0 {
		order = DefaultLeaderboardSort
	}
	slices.SortFunc(entries, func(a, b domain.LeaderboardEntry) int {
		for _, item := range order {
			va := leaderboardValue(a.Statistics, item.Field)
			vb := leaderboardValue(b.Statistics, item.Field)
			if va == nil || vb == nil {
				continue
			}
			c := cmp.Compare(*va, *vb)
			if item.Direction == SortDesc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.Player.ID, b.Player.ID)
	})
	return paginate(entries, q.Pagination), nil
}

func leaderboardValue(s domain.Statistics, field string) *float64 {
	var v float64
	switch field {
	case TopBySumScore:
		v = float64(s.SumScore)
	case TopByAvgScores:
		v = s.AvgScores
	case TopByGamesCount:
		v = float64(s.GamesCount)
	case TopByWinsCount:
		v = float64(s.WinsCount)
	case TopByLossesCount:
		v = float64(s.LossesCount)
	case TopByDrawsCount:
		v = float64(s.DrawsCount)
	default:
		return nil
	}
	return &v
}
