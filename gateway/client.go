package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
)

const (
	readAttempts  = 3 // initial call + 2 retries
	writeAttempts = 2
)

// Client talks to the persistence API. Reads are best-effort with
// caller-supplied fallbacks; writes go through the shared breaker.
type Client struct {
	log     *slog.Logger
	baseURL string
	reader  *http.Client
	writer  *http.Client
	breaker *Breaker
	retry   RetryPolicy
	metrics *observability.Collector
}

func NewClient(log *slog.Logger, baseURL string, readTimeout, writeTimeout time.Duration,
	breaker *Breaker, metrics *observability.Collector) *Client {
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		reader:  &http.Client{Timeout: readTimeout},
		writer:  &http.Client{Timeout: writeTimeout},
		breaker: breaker,
		retry:   DefaultRetryPolicy(),
		metrics: metrics,
	}
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string,
	query url.Values, body, out any) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// read performs a bounded-retry GET. Only network errors and timeouts retry;
// any HTTP status ends the call.
func (c *Client) read(ctx context.Context, class, path string, query url.Values, out any) error {
	var lastErr error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		start := time.Now()
		status, err := c.do(ctx, c.reader, http.MethodGet, path, query, nil, out)
		ok := err == nil && status/100 == 2
		c.metrics.Record(class, time.Since(start), ok)
		if ok {
			return nil
		}
		if err == nil {
			return fmt.Errorf("backend status %d on %s", status, path)
		}
		lastErr = err
		if !transientError(err) || attempt == readAttempts {
			break
		}
		if werr := c.retry.Wait(ctx, attempt); werr != nil {
			return werr
		}
	}
	return lastErr
}

// write performs a breaker-guarded mutation. Network errors, timeouts, and
// 5xx are retriable and breaker-affecting; 4xx are terminal and never counted.
func (c *Client) write(ctx context.Context, class, method, path string, body, out any) error {
	if !c.breaker.Allow() {
		c.metrics.RecordShortCircuit(class)
		return errors.ErrBreakerOpen
	}
	var lastErr error
	countable := false
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		start := time.Now()
		status, err := c.do(ctx, c.writer, method, path, nil, body, out)
		ok := err == nil && status/100 == 2
		c.metrics.Record(class, time.Since(start), ok)
		if ok {
			c.breaker.Success()
			return nil
		}
		if err == nil && status/100 == 4 {
			// Terminal: neither retried nor counted toward the breaker.
			return terminalStatusError(status, path)
		}
		if err == nil {
			lastErr = fmt.Errorf("backend status %d on %s", status, path)
			countable = true
		} else {
			lastErr = err
			if !transientError(err) {
				break
			}
			countable = true
		}
		if attempt < writeAttempts {
			if werr := c.retry.Wait(ctx, attempt); werr != nil {
				lastErr = werr
				break
			}
		}
	}
	if countable {
		c.breaker.Failure()
	}
	return fmt.Errorf("%w: %v", errors.ErrServer, lastErr)
}

func terminalStatusError(status int, path string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: backend 404 on %s", errors.ErrNotFound, path)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: backend %d on %s", errors.ErrNotAllowed, status, path)
	default:
		return fmt.Errorf("%w: backend status %d on %s", errors.ErrServer, status, path)
	}
}

// messagesEnvelope tolerates both the bare-array and wrapped response shapes
// the backend serves across endpoint generations.
type messagesEnvelope struct {
	Messages []domain.Message
}

func (e *messagesEnvelope) UnmarshalJSON(b []byte) error {
	var list []domain.Message
	if err := json.Unmarshal(b, &list); err == nil {
		e.Messages = list
		return nil
	}
	var obj struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.Messages = obj.Messages
	return nil
}

func (c *Client) LatestMessages(ctx context.Context, scope domain.ScopeID, count int,
	fallback []domain.Message) []domain.Message {
	var out messagesEnvelope
	query := url.Values{"count": {strconv.Itoa(count)}}
	path := "/messages/" + url.PathEscape(scope.String()) + "/latest"
	if err := c.read(ctx, observability.ClassHistoryRead, path, query, &out); err != nil {
		c.log.Warn("History read failed, serving fallback", "scope", scope, "error", err)
		return fallback
	}
	return out.Messages
}

func (c *Client) PageMessages(ctx context.Context, scope domain.ScopeID, beforeMs int64,
	limit int, fallback []domain.Message) []domain.Message {
	var out messagesEnvelope
	query := url.Values{
		"before": {strconv.FormatInt(beforeMs, 10)},
		"limit":  {strconv.Itoa(limit)},
	}
	path := "/messages/" + url.PathEscape(scope.String()) + "/page"
	if err := c.read(ctx, observability.ClassHistoryRead, path, query, &out); err != nil {
		c.log.Warn("History page read failed, serving fallback", "scope", scope, "error", err)
		return fallback
	}
	return out.Messages
}

func (c *Client) PostMessage(ctx context.Context, scope domain.ScopeID,
	m domain.Message) (domain.Message, error) {
	var out struct {
		MessageID string          `json:"messageId"`
		Message   *domain.Message `json:"message"`
	}
	path := "/messages/" + url.PathEscape(scope.String())
	if err := c.write(ctx, observability.ClassMessageWrite, http.MethodPost, path, m, &out); err != nil {
		return domain.Message{}, err
	}
	if out.Message != nil {
		return *out.Message, nil
	}
	if out.MessageID != "" {
		m.ID = out.MessageID
	}
	return m, nil
}

func (c *Client) EditMessage(ctx context.Context, scope domain.ScopeID, messageID, text string) error {
	path := "/messages/" + url.PathEscape(scope.String()) + "/" + url.PathEscape(messageID)
	body := map[string]string{"text": text}
	return c.write(ctx, observability.ClassMessageWrite, http.MethodPut, path, body, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, scope domain.ScopeID, messageID string) error {
	path := "/messages/" + url.PathEscape(scope.String()) + "/" + url.PathEscape(messageID)
	return c.write(ctx, observability.ClassMessageWrite, http.MethodDelete, path, nil, nil)
}

func (c *Client) React(ctx context.Context, scope domain.ScopeID, messageID, userID,
	username, emoji string) (map[string]domain.Reaction, error) {
	var out struct {
		Reactions map[string]domain.Reaction `json:"reactions"`
	}
	path := "/messages/" + url.PathEscape(scope.String()) + "/" + url.PathEscape(messageID) + "/reactions"
	body := map[string]any{
		"emoji": emoji,
		"user":  map[string]string{"userId": userID, "username": username},
	}
	if err := c.write(ctx, observability.ClassMessageWrite, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return out.Reactions, nil
}

func (c *Client) MessageFilters(ctx context.Context, userID string,
	fallback domain.FilterSet) domain.FilterSet {
	var out struct {
		Items []struct {
			GroupID    string `json:"groupId"`
			Username   string `json:"username"`
			Normalized string `json:"normalized"`
			CreatedAt  int64  `json:"createdAt"`
			UpdatedAt  int64  `json:"updatedAt"`
		} `json:"items"`
	}
	path := "/users/" + url.PathEscape(userID) + "/message-filters"
	if err := c.read(ctx, observability.ClassFiltersRead, path, nil, &out); err != nil {
		c.log.Warn("Filter read failed, keeping cached rules", "user", userID, "error", err)
		return fallback
	}
	set := make(domain.FilterSet, len(out.Items))
	for _, item := range out.Items {
		if item.GroupID == "" || (item.Username == "" && item.Normalized == "") {
			continue
		}
		scope := domain.ScopeID(item.GroupID)
		author := item.Normalized
		if author == "" {
			author = domain.NormalizeUsername(item.Username)
		}
		since := item.CreatedAt
		if since == 0 {
			since = item.UpdatedAt
		}
		if set[scope] == nil {
			set[scope] = make(map[string]int64)
		}
		set[scope][author] = since
	}
	return set
}

func (c *Client) AddGroupMember(ctx context.Context, scope domain.ScopeID, username string) error {
	path := "/groups/" + url.PathEscape(scope.String()) + "/members"
	body := map[string]string{"username": username}
	return c.write(ctx, observability.ClassMembership, http.MethodPost, path, body, nil)
}

func (c *Client) RemoveGroupMember(ctx context.Context, scope domain.ScopeID, username string) error {
	path := "/groups/" + url.PathEscape(scope.String()) + "/members/" + url.PathEscape(username)
	return c.write(ctx, observability.ClassMembership, http.MethodDelete, path, nil, nil)
}

// profilesEnvelope tolerates both {"profiles": {...}} and a bare map.
type profilesEnvelope struct {
	Profiles map[string]domain.ProfileSummary
}

func (e *profilesEnvelope) UnmarshalJSON(b []byte) error {
	var obj struct {
		Profiles map[string]domain.ProfileSummary `json:"profiles"`
	}
	if err := json.Unmarshal(b, &obj); err == nil && obj.Profiles != nil {
		e.Profiles = obj.Profiles
		return nil
	}
	return json.Unmarshal(b, &e.Profiles)
}

// ProfilesBatch is the one read that surfaces its error: callers degrade to a
// bare-username summary rather than a generic fallback value.
func (c *Client) ProfilesBatch(ctx context.Context, usernames []string) (map[string]domain.ProfileSummary, error) {
	var out profilesEnvelope
	query := url.Values{"users": {strings.Join(usernames, ",")}}
	if err := c.read(ctx, observability.ClassPresenceBatch, "/profiles/batch", query, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

func (c *Client) Like(ctx context.Context, from, target string) error {
	body := map[string]string{"from": from, "target": target}
	return c.write(ctx, observability.ClassRelationship, http.MethodPost, "/likes", body, nil)
}

func (c *Client) Unlike(ctx context.Context, from, target string) error {
	body := map[string]string{"from": from, "target": target}
	return c.write(ctx, observability.ClassRelationship, http.MethodDelete, "/likes", body, nil)
}

func (c *Client) DMThreads(ctx context.Context, username string,
	fallback []domain.ScopeID) []domain.ScopeID {
	var out struct {
		Threads []struct {
			DMID string `json:"dmId"`
		} `json:"threads"`
	}
	query := url.Values{"user": {username}}
	if err := c.read(ctx, observability.ClassHistoryRead, "/dm/threads", query, &out); err != nil {
		c.log.Warn("DM thread read failed, serving fallback", "user", username, "error", err)
		return fallback
	}
	threads := make([]domain.ScopeID, 0, len(out.Threads))
	for _, t := range out.Threads {
		if t.DMID != "" {
			threads = append(threads, domain.ScopeID(t.DMID))
		}
	}
	return threads
}
