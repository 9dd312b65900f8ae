package dto

// ExchangeRequest is the showcase form payload. Website is a honeypot
// field: browsers leave it empty, naive bots do not. Either ID or IDs
// carries the cart.
type ExchangeRequest struct {
	ID             string   `json:"id"`
	IDs            []string `json:"ids"`
	Name           string   `json:"name"`
	Message        string   `json:"message"`
	Website        string   `json:"website"`
	TurnstileToken string   `json:"turnstileToken"`
}

func (r ExchangeRequest) CardIDs() []string {
	if len(r.IDs) > 0 {
		return r.IDs
	}
	if r.ID != "" {
		return []string{r.ID}
	}
	return nil
}

type ExchangeResponse struct {
	OK      bool `json:"ok"`
	Deduped bool `json:"deduped,omitempty"`
}
