package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// UpgradePrompt tells the caller which subscription tier unlocks a capability.
type UpgradePrompt struct {
	Capability   string `json:"capability"`
	CurrentTier  string `json:"current_tier"`
	RequiredTier string `json:"required_tier"`
	Message      string `json:"message"`
}

type UpgradeEnvelope struct {
	Upgrade UpgradePrompt `json:"upgrade"`
}
