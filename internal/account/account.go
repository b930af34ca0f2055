package account

// Account is one chat-client session driven by the bot.
type Account struct {
	Name        string `json:"name"`
	SessionPath string `json:"session_path"`
	Proxy       *Proxy `json:"proxy,omitempty"`
}
