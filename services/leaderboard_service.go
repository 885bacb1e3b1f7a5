// services/leaderboard_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"skill-arena/realtime"

	"github.com/redis/go-redis/v9"
)

// LeaderboardService keeps live competition standings in redis sorted sets so
// score reads during play never hit the DB. It is a cache: settlement always
// ranks from the participants table, and every write here is best-effort.
type LeaderboardService struct {
	client *redis.Client
}

// NewLeaderboardService connects to redis and pings it once. Returns an
// error when redis is unreachable; callers run without live standings then.
func NewLeaderboardService(addr, password string, db int) (*LeaderboardService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &LeaderboardService{client: client}, nil
}

func (s *LeaderboardService) Close() error {
	return s.client.Close()
}

func boardKey(code string) string {
	return fmt.Sprintf("competition:%s:board", code)
}

func namesKey(code string) string {
	return fmt.Sprintf("competition:%s:players", code)
}

func (s *LeaderboardService) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

// SetScore records a participant's latest score and caches their username
// for standings frames.
func (s *LeaderboardService) SetScore(code, userID, username string, score int64) error {
	ctx, cancel := s.ctx()
	defer cancel()

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, boardKey(code), redis.Z{Score: float64(score), Member: userID})
	if username != "" {
		pipe.HSet(ctx, namesKey(code), userID, username)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("setting score: %w", err)
	}
	return nil
}

// Top returns the current top-n standings, highest score first.
func (s *LeaderboardService) Top(code string, n int) ([]realtime.Standing, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	results, err := s.client.ZRevRangeWithScores(ctx, boardKey(code), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	names, err := s.client.HGetAll(ctx, namesKey(code)).Result()
	if err != nil {
		names = map[string]string{}
	}

	standings := make([]realtime.Standing, len(results))
	for i, result := range results {
		userID, _ := result.Member.(string)
		username := names[userID]
		if username == "" {
			username = userID
		}
		standings[i] = realtime.Standing{
			Position: i + 1,
			UserID:   userID,
			Username: username,
			Score:    int64(result.Score),
		}
	}
	return standings, nil
}

// Clear drops a competition's live board after settlement or cancellation.
func (s *LeaderboardService) Clear(code string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	pipe := s.client.Pipeline()
	pipe.Del(ctx, boardKey(code))
	pipe.Del(ctx, namesKey(code))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clearing board: %w", err)
	}
	return nil
}
