package dto

type PublicConfigResponse struct {
	SiteURL          string `json:"siteUrl"`
	TurnstileSiteKey string `json:"turnstileSiteKey"`
	BotUsername      string `json:"botUsername"`
	MaxCartSize      int    `json:"maxCartSize"`
}
