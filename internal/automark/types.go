package automark

// AdRequest carries the product details every generation call sends.
type AdRequest struct {
	ProductName string `json:"product_name"`
	Description string `json:"description"`
}

type TextAd struct {
	AdText string `json:"ad_text"`
}

// ImageAd is the result of image generation or upload enhancement. ImageURL
// is always absolute.
type ImageAd struct {
	ImageName string `json:"image_name,omitempty"`
	ImageURL  string `json:"image_url"`
	AdText    string `json:"ad_text"`
}

// Upload is a user-selected image file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type InstagramStatus struct {
	Connected   bool     `json:"connected"`
	Username    string   `json:"username,omitempty"`
	AccountType string   `json:"account_type,omitempty"`
	ConnectedAt *float64 `json:"connected_at,omitempty"`
}

type ConfigStatus struct {
	AppIDConfigured     bool   `json:"app_id_configured"`
	AppSecretConfigured bool   `json:"app_secret_configured"`
	RedirectURI         string `json:"redirect_uri"`
	Message             string `json:"message"`
}

// Configured reports whether the backend has both Instagram app credentials.
func (c ConfigStatus) Configured() bool {
	return c.AppIDConfigured && c.AppSecretConfigured
}

type CaptionRequest struct {
	AdText      string
	ProductName string
	Description string
}

type PostType string

const (
	PostTypeFeed  PostType = "feed"
	PostTypeStory PostType = "story"
)

func (p PostType) Valid() bool {
	return p == PostTypeFeed || p == PostTypeStory
}

type PostRequest struct {
	UserID      string   `json:"user_id"`
	ImageURL    string   `json:"image_url"`
	AdText      string   `json:"ad_text"`
	ProductName string   `json:"product_name"`
	Description string   `json:"description"`
	PostType    PostType `json:"post_type"`
	Caption     string   `json:"caption"`
}

type PostResult struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Ack is the generic {success, message} answer.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
