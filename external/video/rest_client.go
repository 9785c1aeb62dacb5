package video

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pairloop/pairloop/internal/video"
)

const (
	roomTypeGroup          = "group"
	roomEmptyTimeoutMin    = 10
	roomUnusedTimeoutMin   = 30
	compositionAudioFormat = "mp4"
)

type RESTClientConfig struct {
	BaseURL           string
	AccountSID        string
	AuthToken         string
	RoomCallbackURL   string
	RoomJoinURLFormat string
}

// RESTClient implements video.Client against a Twilio-compatible
// Programmable Video API using basic auth and form-encoded requests.
type RESTClient struct {
	baseURL           string
	accountSID        string
	authToken         string
	roomCallbackURL   string
	roomJoinURLFormat string
	client            *http.Client
}

func NewRESTClient(cfg RESTClientConfig) video.Client {
	return &RESTClient{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		accountSID:        cfg.AccountSID,
		authToken:         cfg.AuthToken,
		roomCallbackURL:   cfg.RoomCallbackURL,
		roomJoinURLFormat: cfg.RoomJoinURLFormat,
		client:            &http.Client{},
	}
}

type roomPayload struct {
	SID        string `json:"sid"`
	UniqueName string `json:"unique_name"`
	Status     string `json:"status"`
	URL        string `json:"url"`
}

type compositionPayload struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (c *RESTClient) EnsureRoom(ctx context.Context, uniqueName string) (*video.Room, error) {
	room, found, err := c.getRoomByName(ctx, uniqueName)
	if err != nil {
		return nil, err
	}
	if found {
		slog.Debug("room already exists", "room_name", uniqueName, "room_sid", room.SID)
		return room, nil
	}

	form := url.Values{}
	form.Set("UniqueName", uniqueName)
	form.Set("Type", roomTypeGroup)
	form.Set("RecordParticipantsOnConnect", "true")
	form.Set("EmptyRoomTimeout", fmt.Sprintf("%d", roomEmptyTimeoutMin))
	form.Set("UnusedRoomTimeout", fmt.Sprintf("%d", roomUnusedTimeoutMin))
	form.Set("StatusCallback", c.roomCallbackURL)
	form.Set("StatusCallbackMethod", http.MethodPost)

	var payload roomPayload
	if err := c.postForm(ctx, "/v1/Rooms", form, &payload); err != nil {
		return nil, fmt.Errorf("create room %s: %w", uniqueName, err)
	}
	slog.Info("room created", "room_name", uniqueName, "room_sid", payload.SID)
	return c.toRoom(payload), nil
}

func (c *RESTClient) CloseRoom(ctx context.Context, uniqueName string) error {
	form := url.Values{}
	form.Set("Status", "completed")

	var payload roomPayload
	err := c.postForm(ctx, "/v1/Rooms/"+url.PathEscape(uniqueName), form, &payload)
	if err != nil {
		if isNotFound(err) {
			slog.Info("room already gone on close", "room_name", uniqueName)
			return nil
		}
		return fmt.Errorf("close room %s: %w", uniqueName, err)
	}
	return nil
}

func (c *RESTClient) CreateComposition(ctx context.Context, roomSID, callbackURL string) (string, error) {
	form := url.Values{}
	form.Set("RoomSid", roomSID)
	form.Set("AudioSources", "*")
	form.Set("Format", compositionAudioFormat)
	form.Set("StatusCallback", callbackURL)
	form.Set("StatusCallbackMethod", http.MethodPost)

	var payload compositionPayload
	if err := c.postForm(ctx, "/v1/Compositions", form, &payload); err != nil {
		return "", fmt.Errorf("create composition for room %s: %w", roomSID, err)
	}
	slog.Info("composition requested", "room_sid", roomSID, "composition_sid", payload.SID)
	return payload.SID, nil
}

func (c *RESTClient) ResolveMediaURL(ctx context.Context, mediaSID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/Compositions/"+url.PathEscape(mediaSID)+"/Media?Ttl=3600", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return "", decodeAPIError(resp.StatusCode, body)
	}

	var payload struct {
		RedirectTo string `json:"redirect_to"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode media redirect: %w", err)
	}
	if payload.RedirectTo == "" {
		return "", fmt.Errorf("media %s has no redirect url", mediaSID)
	}
	return payload.RedirectTo, nil
}

// ValidateSignature recomputes the platform's request signature: HMAC-SHA1
// over the exact callback URL concatenated with every form key and value in
// sorted key order, base64 encoded.
func (c *RESTClient) ValidateSignature(callbackURL string, params map[string]string, signature string) bool {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(callbackURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(c.authToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *RESTClient) getRoomByName(ctx context.Context, uniqueName string) (*video.Room, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/Rooms/"+url.PathEscape(uniqueName), nil)
	if err != nil {
		return nil, false, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return nil, false, decodeAPIError(resp.StatusCode, body)
	}

	var payload roomPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("decode room: %w", err)
	}
	return c.toRoom(payload), true, nil
}

func (c *RESTClient) toRoom(payload roomPayload) *video.Room {
	joinURL := payload.URL
	if c.roomJoinURLFormat != "" {
		joinURL = fmt.Sprintf(c.roomJoinURLFormat, payload.UniqueName)
	}
	return &video.Room{
		SID:        payload.SID,
		UniqueName: payload.UniqueName,
		Status:     payload.Status,
		URL:        joinURL,
	}
}

func (c *RESTClient) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type statusError struct {
	httpStatus int
	apiError   apiError
}

func (e *statusError) Error() string {
	if e.apiError.Message != "" {
		return fmt.Sprintf("video api status %d (code %d): %s", e.httpStatus, e.apiError.Code, e.apiError.Message)
	}
	return fmt.Sprintf("video api status %d", e.httpStatus)
}

func decodeAPIError(httpStatus int, body []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	return &statusError{httpStatus: httpStatus, apiError: apiErr}
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.httpStatus == http.StatusNotFound
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
