// Package api is the reward API client. Every request carries the signed
// web-app payload and the account fingerprint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/AlexKrutoy/SnapsterBot/internal/webapp"
)

const (
	DefaultBaseURL    = "https://prod.snapster.bot/api"
	defaultIPCheckURL = "https://httpbin.org/ip"
	ipCheckTimeout    = 5 * time.Second
	credentialHeader  = "Telegram-Data"
)

type Options struct {
	BaseURL   string
	WebAppURL string
	UserAgent string
	ProxyURL  string
	Timeout   time.Duration
	RPS       float64
	Burst     int
}

type Client struct {
	http       *resty.Client
	limiter    *rate.Limiter
	ipCheckURL string

	mu         sync.RWMutex
	credential string
	telegramID int64
}

func New(opts Options) *Client {
	baseURL := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeaders(newHeaderBuilder(opts.WebAppURL, opts.UserAgent).Build())
	if proxyURL := strings.TrimSpace(opts.ProxyURL); proxyURL != "" {
		httpClient.SetProxy(proxyURL)
	}

	return &Client{
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		ipCheckURL: defaultIPCheckURL,
	}
}

// SetCredential installs the payload and user id used by every call.
func (c *Client) SetCredential(cred *webapp.Credential, telegramID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.credential = ""
	if cred != nil {
		c.credential = cred.HeaderValue()
	}
	c.telegramID = telegramID
}

// HasCredential reports whether SetCredential installed a payload.
func (c *Client) HasCredential() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential != ""
}

func (c *Client) identity() (string, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential, c.telegramID
}

func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	const endpoint = "/user/getUserByTelegramId"
	_, id := c.identity()

	var resp statsResponse
	if err := c.request(ctx, http.MethodGet, endpoint, idQuery(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, &MissingFieldError{Endpoint: endpoint, Field: "data"}
	}
	if resp.Data.PointsCount == nil {
		return nil, &MissingFieldError{Endpoint: endpoint, Field: "data.pointsCount"}
	}

	stats := &Stats{
		Points:      *resp.Data.PointsCount,
		StreakCount: resp.Data.DailyBonusStreakCount,
	}
	if league := resp.Data.CurrentLeague; league != nil {
		stats.League = League{
			ID:          league.LeagueID,
			Title:       league.Title,
			MiningSpeed: league.MiningSpeed,
		}
	}
	return stats, nil
}

// StartDailyQuest returns false when the streak quest was already started.
func (c *Client) StartDailyQuest(ctx context.Context) (bool, error) {
	_, id := c.identity()
	return c.postResult(ctx, "/dailyQuest/startDailyBonusQuest", telegramBody{TelegramID: id})
}

func (c *Client) ClaimDailyBonus(ctx context.Context, day int) (bool, error) {
	_, id := c.identity()
	return c.postResult(ctx, "/dailyQuest/claimDailyQuestBonus", dailyClaimBody{TelegramID: id, DayCount: day})
}

func (c *Client) ClaimMining(ctx context.Context) (float64, error) {
	const endpoint = "/user/claimMiningBonus"
	_, id := c.identity()

	var resp miningResponse
	if err := c.request(ctx, http.MethodPost, endpoint, nil, telegramBody{TelegramID: id}, &resp); err != nil {
		return 0, err
	}
	if resp.Data == nil || resp.Data.PointsClaimed == nil {
		return 0, &MissingFieldError{Endpoint: endpoint, Field: "data.pointsClaimed"}
	}
	return *resp.Data.PointsClaimed, nil
}

func (c *Client) ReferralPoints(ctx context.Context) (float64, error) {
	const endpoint = "/referral/calculateReferralPoints"
	_, id := c.identity()

	var resp referralPointsResponse
	if err := c.request(ctx, http.MethodGet, endpoint, idQuery(id), nil, &resp); err != nil {
		return 0, err
	}
	if resp.Data == nil || resp.Data.PointsToClaim == nil {
		return 0, &MissingFieldError{Endpoint: endpoint, Field: "data.pointsToClaim"}
	}
	return *resp.Data.PointsToClaim, nil
}

func (c *Client) ClaimReferral(ctx context.Context) (bool, error) {
	_, id := c.identity()
	return c.postResult(ctx, "/referral/claimReferralPoints", telegramBody{TelegramID: id})
}

func (c *Client) Quests(ctx context.Context) ([]Quest, error) {
	const endpoint = "/quest/getQuests"
	_, id := c.identity()

	var resp questsResponse
	if err := c.request(ctx, http.MethodGet, endpoint, idQuery(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, &MissingFieldError{Endpoint: endpoint, Field: "data"}
	}
	return *resp.Data, nil
}

func (c *Client) StartQuest(ctx context.Context, questID int64) (bool, error) {
	_, id := c.identity()
	return c.postResult(ctx, "/quest/startQuest", questBody{TelegramID: id, QuestID: questID})
}

func (c *Client) ClaimQuest(ctx context.Context, questID int64) (bool, error) {
	_, id := c.identity()
	return c.postResult(ctx, "/quest/claimQuestBonus", questBody{TelegramID: id, QuestID: questID})
}

// PublicIP asks an echo service which address the proxy exits from.
func (c *Client) PublicIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ipCheckTimeout)
	defer cancel()

	var resp ipResponse
	if err := c.do(ctx, http.MethodGet, c.ipCheckURL, nil, nil, &resp, false); err != nil {
		return "", err
	}
	if resp.Origin == "" {
		return "", &MissingFieldError{Endpoint: c.ipCheckURL, Field: "origin"}
	}
	return resp.Origin, nil
}

func (c *Client) postResult(ctx context.Context, endpoint string, body any) (bool, error) {
	var resp resultResponse
	if err := c.request(ctx, http.MethodPost, endpoint, nil, body, &resp); err != nil {
		return false, err
	}
	if resp.Result == nil {
		return false, &MissingFieldError{Endpoint: endpoint, Field: "result"}
	}
	return *resp.Result, nil
}

func (c *Client) request(ctx context.Context, method, endpoint string, query map[string]string, body, out any) error {
	return c.do(ctx, method, endpoint, query, body, out, true)
}

// do executes one call. endpoint may be a path under the base URL or an
// absolute URL. Transport failures, non-2xx statuses, empty bodies and
// malformed JSON all come back as *ResponseError.
func (c *Client) do(ctx context.Context, method, endpoint string, query map[string]string, body, out any, signed bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &ResponseError{Method: method, Endpoint: endpoint, Reason: "rate limiter", Err: err}
	}

	req := c.http.R().SetContext(ctx)
	if signed {
		credential, _ := c.identity()
		req.SetHeader(credentialHeader, credential)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return &ResponseError{Method: method, Endpoint: endpoint, Reason: "transport", Err: err}
	}

	raw := resp.Body()
	if !resp.IsSuccess() {
		return &ResponseError{
			Method:   method,
			Endpoint: endpoint,
			Status:   resp.StatusCode(),
			Body:     preview(raw),
			Reason:   "unexpected status",
		}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &ResponseError{Method: method, Endpoint: endpoint, Status: resp.StatusCode(), Reason: "empty body"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ResponseError{
			Method:   method,
			Endpoint: endpoint,
			Status:   resp.StatusCode(),
			Body:     preview(raw),
			Reason:   "malformed json",
			Err:      err,
		}
	}

	return nil
}

func idQuery(id int64) map[string]string {
	return map[string]string{"telegramId": strconv.FormatInt(id, 10)}
}
