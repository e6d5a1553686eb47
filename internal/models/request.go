package models

// LoginRequest represents the local API credentials
type LoginRequest struct {
	// Configured API username
	Username string `json:"username" example:"admin"`
	// Configured API password
	Password string `json:"password" example:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	// JWT token for authentication
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	// Token type, always Bearer
	TokenType string `json:"type" example:"Bearer"`
}

// ProfileUpdate carries a partial profile edit. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name         *string     `json:"name,omitempty"`
	Email        *string     `json:"email,omitempty"`
	Avatar       *string     `json:"avatar,omitempty"`
	JoinDate     *string     `json:"joinDate,omitempty"`
	Plan         *Plan       `json:"plan,omitempty"`
	AdsGenerated *int        `json:"adsGenerated,omitempty"`
	GeneratedAds *[]AdRecord `json:"generatedAds,omitempty"`
}

// GenerateRequest is the JSON body of a generation call on the local API.
type GenerateRequest struct {
	Mode        string `json:"mode" form:"mode"`
	ProductName string `json:"product_name" form:"product_name"`
	Description string `json:"description" form:"description"`
}
