package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"
	"go.uber.org/zap"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

const (
	// codeRateLimitExceeded код ошибки API v1.1 при превышении лимита
	codeRateLimitExceeded = 88

	// maxTimelineCount ограничение API на размер страницы ленты
	maxTimelineCount = 200
	// maxTimelineDepth глубже этого API ленту не отдает
	maxTimelineDepth = 3200

	headerRateLimitReset  = "x-rate-limit-reset"
	headerDailyLimitReset = "x-user-limit-24hour-reset"
)

// Credentials содержит ключи OAuth1 пользовательского контекста
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

type gateway struct {
	client *twitter.Client
	logger *zap.Logger
}

// NewHTTPClient создает подписывающий OAuth1 HTTP-клиент с сетевым таймаутом
func NewHTTPClient(creds Credentials, timeout time.Duration) *http.Client {
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	httpClient := config.Client(oauth1.NoContext, token)
	httpClient.Timeout = timeout

	return httpClient
}

// NewGateway создает шлюз к API платформы поверх готового HTTP-клиента
func NewGateway(httpClient *http.Client, logger *zap.Logger) ports.PostGateway {
	return &gateway{
		client: twitter.NewClient(httpClient),
		logger: logger,
	}
}

// IdentifyCurrentUser проверяет учетные данные
func (g *gateway) IdentifyCurrentUser(ctx context.Context) (*entities.Account, error) {
	user, resp, err := g.client.Accounts.VerifyCredentials(&twitter.AccountVerifyParams{
		SkipStatus: twitter.Bool(true),
	})
	if err = classify(resp, err); err != nil {
		if _, throttled := entities.IsThrottle(err); throttled {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", entities.ErrAuth, err)
	}

	if user == nil || user.IDStr == "" {
		return nil, fmt.Errorf("%w: empty user in response", entities.ErrAuth)
	}

	g.logger.Info("Credentials verified",
		zap.String("user_id", user.IDStr),
		zap.String("handle", user.ScreenName))

	return &entities.Account{ID: user.IDStr, Handle: user.ScreenName}, nil
}

// ListRecentPosts возвращает последние посты пользователя.
// Лента читается страницами по maxTimelineCount, следующая страница запрашивается через max_id.
func (g *gateway) ListRecentPosts(ctx context.Context, userID string, limit int) ([]entities.Post, error) {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	if limit <= 0 {
		limit = maxTimelineCount
	}
	limit = min(limit, maxTimelineDepth)

	posts := make([]entities.Post, 0, min(limit, maxTimelineCount))
	var maxID int64
	for len(posts) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tweets, resp, err := g.client.Timelines.UserTimeline(&twitter.UserTimelineParams{
			UserID:          uid,
			Count:           min(limit-len(posts), maxTimelineCount),
			MaxID:           maxID,
			TrimUser:        twitter.Bool(true),
			IncludeRetweets: twitter.Bool(true),
			TweetMode:       "extended",
		})
		if err = classify(resp, err); err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		if len(tweets) == 0 {
			break
		}

		for _, t := range tweets {
			if len(posts) == limit {
				break
			}
			posts = append(posts, toPost(t))
		}

		maxID = tweets[len(tweets)-1].ID - 1
		if maxID <= 0 {
			break
		}
	}

	g.logger.Debug("Timeline fetched", zap.String("user_id", userID), zap.Int("posts", len(posts)))

	return posts, nil
}

// DeleteByID удаляет пост по идентификатору.
// Ответ 2xx означает, что пост удален, даже если тело ответа не разобралось.
func (g *gateway) DeleteByID(ctx context.Context, postID string) error {
	id, err := strconv.ParseInt(postID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post id %q", postID)
	}

	_, resp, err := g.client.Statuses.Destroy(id, &twitter.StatusDestroyParams{
		TrimUser: twitter.Bool(true),
	})
	if resp != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if err != nil {
			g.logger.Warn("Post deleted, response body not decoded",
				zap.String("post_id", postID),
				zap.Error(err))
		}
		return nil
	}

	return classify(resp, err)
}

// classify приводит ответ API к ошибкам предметной области.
// go-twitter возвращает nil ошибку для не-2xx ответа с пустым телом, поэтому статус проверяется отдельно.
func classify(resp *http.Response, err error) error {
	if resp != nil && isThrottled(resp, err) {
		return entities.NewThrottleError(resetEpoch(resp), describe(resp, err))
	}
	if resp == nil && err != nil {
		var apiErr twitter.APIError
		if errors.As(err, &apiErr) && hasCode(apiErr, codeRateLimitExceeded) {
			return entities.NewThrottleError(nil, apiErr.Error())
		}
		return err
	}
	if resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return errors.New(describe(resp, err))
	}
	return err
}

func isThrottled(resp *http.Response, err error) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var apiErr twitter.APIError
	return errors.As(err, &apiErr) && hasCode(apiErr, codeRateLimitExceeded)
}

func hasCode(apiErr twitter.APIError, code int) bool {
	for _, detail := range apiErr.Errors {
		if detail.Code == code {
			return true
		}
	}
	return false
}

// resetEpoch читает время сброса лимита; суточная квота имеет приоритет, она дольше
func resetEpoch(resp *http.Response) *int64 {
	for _, header := range []string{headerDailyLimitReset, headerRateLimitReset} {
		if raw := resp.Header.Get(header); raw != "" {
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return &v
			}
		}
	}
	return nil
}

func describe(resp *http.Response, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: %v", resp.Status, err)
	}
	return resp.Status
}

func toPost(t twitter.Tweet) entities.Post {
	text := t.FullText
	if text == "" {
		text = t.Text
	}

	createdAt, _ := time.Parse(time.RubyDate, t.CreatedAt)

	return entities.Post{
		ID:        t.IDStr,
		Text:      text,
		CreatedAt: createdAt,
		Metrics: entities.PostMetrics{
			Likes:   t.FavoriteCount,
			Reposts: t.RetweetCount,
		},
	}
}
