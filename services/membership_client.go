// services/membership_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"bot-access-system/utils"
)

// TelegramMembershipClient answers channel-membership checks via the Bot API
// getChatMember call. Used fresh on every gated action.
type TelegramMembershipClient struct {
	BaseURL string // https://api.telegram.org unless overridden for tests
	Token   string
	Channel string // @channelname or numeric chat ID
	Client  *http.Client
}

func NewTelegramMembershipClient(token, channel string) *TelegramMembershipClient {
	return &TelegramMembershipClient{
		BaseURL: "https://api.telegram.org",
		Token:   token,
		Channel: channel,
		Client:  utils.HTTPClient,
	}
}

type chatMemberResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		Status string `json:"status"`
	} `json:"result"`
}

// IsChannelMember reports whether the user currently belongs to the required
// channel. Restricted members still count as subscribed.
func (c *TelegramMembershipClient) IsChannelMember(ctx context.Context, telegramID int64) (bool, error) {
	u := fmt.Sprintf("%s/bot%s/getChatMember?chat_id=%s&user_id=%d",
		c.BaseURL, c.Token, url.QueryEscape(c.Channel), telegramID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("[MEMBERSHIP] getChatMember returned %d: %s", resp.StatusCode, string(body))
		return false, fmt.Errorf("getChatMember failed: %d", resp.StatusCode)
	}

	var out chatMemberResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, err
	}
	if !out.OK {
		return false, fmt.Errorf("getChatMember rejected: %s", out.Description)
	}

	switch out.Result.Status {
	case "member", "administrator", "creator", "restricted":
		return true, nil
	default: // left, kicked
		return false, nil
	}
}
