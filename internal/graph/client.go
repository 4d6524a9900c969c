// Package graph wraps the Facebook Messenger Graph API send calls.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://graph.facebook.com"
	defaultTimeout = 10 * time.Second

	// Messenger caps pages well above this; 10 sends/sec with a small
	// burst keeps us clear of platform throttling during busy ticks.
	sendRateLimit = 10
	sendBurst     = 20

	profileCacheSize = 256
)

type Client struct {
	client      *http.Client
	baseURL     string
	accessToken string
	apiVersion  string
	limiter     *rate.Limiter

	profileCache *lru.Cache[string, *UserProfile]
}

// SendResponse is the Graph API reply to a message send.
type SendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type UserProfile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ProfilePic string `json:"profile_pic"`
}

func NewClient(accessToken, apiVersion string) *Client {
	cache, err := lru.New[string, *UserProfile](profileCacheSize)
	if err != nil {
		// Only possible with a non-positive size
		panic(err)
	}

	return &Client{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:      defaultBaseURL,
		accessToken:  accessToken,
		apiVersion:   apiVersion,
		limiter:      rate.NewLimiter(sendRateLimit, sendBurst),
		profileCache: cache,
	}
}

// SetBaseURL overrides the Graph endpoint, used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// SendText sends a plain text message and returns the new message ID.
func (c *Client) SendText(ctx context.Context, recipientID, text string) (string, error) {
	body := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}

	var resp SendResponse
	if err := c.post(ctx, "me/messages", body, &resp); err != nil {
		return "", fmt.Errorf("send text to %s: %w", recipientID, err)
	}
	return resp.MessageID, nil
}

// SendAttachment sends a hosted attachment by URL. attachType is one of
// image, video, audio or file.
func (c *Client) SendAttachment(ctx context.Context, recipientID, attachType, attachmentURL string) error {
	body := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type": attachType,
				"payload": map[string]interface{}{
					"url":         attachmentURL,
					"is_reusable": true,
				},
			},
		},
	}
	if err := c.post(ctx, "me/messages", body, nil); err != nil {
		return fmt.Errorf("send attachment to %s: %w", recipientID, err)
	}
	return nil
}

// UploadAttachment sends an attachment from a local payload via
// multipart upload instead of a hosted URL.
func (c *Client) UploadAttachment(ctx context.Context, recipientID, attachType, filename string, data io.Reader) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	recipient, err := json.Marshal(map[string]string{"id": recipientID})
	if err != nil {
		return err
	}
	message, err := json.Marshal(map[string]interface{}{
		"attachment": map[string]interface{}{
			"type":    attachType,
			"payload": map[string]interface{}{"is_reusable": true},
		},
	})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("recipient", string(recipient)); err != nil {
		return err
	}
	if err := mw.WriteField("message", string(message)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("filedata", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/me/messages?access_token=%s",
		c.baseURL, c.apiVersion, url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("upload attachment to %s: %w", recipientID, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload attachment to %s: %w", recipientID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respData, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload attachment to %s: graph returned %d: %s", recipientID, resp.StatusCode, string(respData))
	}
	return nil
}

// SendTyping toggles the typing indicator.
func (c *Client) SendTyping(ctx context.Context, recipientID string, on bool) error {
	action := "typing_on"
	if !on {
		action = "typing_off"
	}
	body := map[string]interface{}{
		"recipient":     map[string]string{"id": recipientID},
		"sender_action": action,
	}
	if err := c.post(ctx, "me/messages", body, nil); err != nil {
		return fmt.Errorf("send typing %s to %s: %w", action, recipientID, err)
	}
	return nil
}

// DeleteMessage deletes a previously sent bot message by ID.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	endpoint := fmt.Sprintf("%s/%s/%s?access_token=%s",
		c.baseURL, c.apiVersion, url.PathEscape(messageID), url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete message %s: graph returned %d: %s", messageID, resp.StatusCode, string(data))
	}
	return nil
}

// GetUserProfile fetches profile fields, caching results since profile
// data is stable within a process lifetime.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	if profile, ok := c.profileCache.Get(userID); ok {
		return profile, nil
	}

	endpoint := fmt.Sprintf("%s/%s/%s?fields=first_name,last_name,profile_pic&access_token=%s",
		c.baseURL, c.apiVersion, url.PathEscape(userID), url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get profile %s: graph returned %d: %s", userID, resp.StatusCode, string(data))
	}

	var profile UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("get profile %s: decode: %w", userID, err)
	}

	c.profileCache.Add(userID, &profile)
	return &profile, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/%s?access_token=%s",
		c.baseURL, c.apiVersion, path, url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Graph API: %s returned %d: %s", path, resp.StatusCode, string(respData))
		return fmt.Errorf("graph returned %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respData, out); err != nil {
			return fmt.Errorf("decode graph response: %w", err)
		}
	}
	return nil
}
