package automark

import (
	"context"
	"net/url"
)

func (c *Client) InstagramStatus(ctx context.Context, userID string) (InstagramStatus, error) {
	body, err := c.get(ctx, "/api/instagram/status", url.Values{"user_id": {userID}})
	if err != nil {
		return InstagramStatus{}, err
	}
	var st InstagramStatus
	if err := decode(body, &st, field{"connected", kindBool}); err != nil {
		return InstagramStatus{}, err
	}
	return st, nil
}

func (c *Client) InstagramConfigStatus(ctx context.Context) (ConfigStatus, error) {
	body, err := c.get(ctx, "/api/instagram/config-status", nil)
	if err != nil {
		return ConfigStatus{}, err
	}
	var cs ConfigStatus
	if err := decode(body, &cs,
		field{"app_id_configured", kindBool},
		field{"app_secret_configured", kindBool},
	); err != nil {
		return ConfigStatus{}, err
	}
	return cs, nil
}

// InstagramAuthURL returns the OAuth URL the user must be sent to.
func (c *Client) InstagramAuthURL(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/api/instagram/auth-url", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		AuthURL string `json:"auth_url"`
	}
	if err := decode(body, &out, field{"auth_url", kindString}); err != nil {
		return "", err
	}
	return out.AuthURL, nil
}

func (c *Client) GenerateCaption(ctx context.Context, req CaptionRequest) (string, error) {
	body, err := c.postMultipart(ctx, "/api/instagram/generate-caption",
		[][2]string{
			{"ad_text", req.AdText},
			{"product_name", req.ProductName},
			{"description", req.Description},
		},
		nil,
	)
	if err != nil {
		return "", err
	}
	var out struct {
		Caption string `json:"caption"`
	}
	if err := decode(body, &out, field{"caption", kindString}); err != nil {
		return "", err
	}
	return out.Caption, nil
}

func (c *Client) PostToInstagram(ctx context.Context, req PostRequest) (PostResult, error) {
	body, err := c.postJSON(ctx, "/api/instagram/post", req)
	if err != nil {
		return PostResult{}, err
	}
	var res PostResult
	if err := decode(body, &res, field{"success", kindBool}); err != nil {
		return PostResult{}, err
	}
	return res, nil
}

func (c *Client) DisconnectInstagram(ctx context.Context, userID string) (Ack, error) {
	body, err := c.postJSON(ctx, "/api/instagram/disconnect", map[string]string{"user_id": userID})
	if err != nil {
		return Ack{}, err
	}
	var ack Ack
	if err := decode(body, &ack); err != nil {
		return Ack{}, err
	}
	return ack, nil
}
