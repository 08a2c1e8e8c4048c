package types

// WithdrawRequest is the POST /withdraw body. Byte fields are 0x-prefixed hex, amount is a
// base-10 integer string in the token's smallest unit.
type WithdrawRequest struct {
	Recipient     string `json:"recipient"`
	Amount        string `json:"amount"`
	Signature     string `json:"signature"`
	MessageDigest string `json:"messageDigest"`
}

// WithdrawResponse is returned for a successful withdrawal.
type WithdrawResponse struct {
	EventID       string `json:"eventId"`
	Recipient     string `json:"recipient"`
	Amount        string `json:"amount"`
	Signer        string `json:"signer"`
	MessageDigest string `json:"messageDigest"`
	CompletedAt   int64  `json:"completedAt"`
}

// ErrorResponse carries the failure category of a rejected request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AuditRootResponse is the merkle commitment over all stored withdrawal events.
type AuditRootResponse struct {
	Root       string `json:"root"`
	EventCount int    `json:"eventCount"`
}

// AuditProofResponse proves inclusion of a single event under the current root.
type AuditProofResponse struct {
	EventID   string   `json:"eventId"`
	LeafIndex int      `json:"leafIndex"`
	Leaf      string   `json:"leaf"`
	Proof     []string `json:"proof"`
	Root      string   `json:"root"`
}

// ModuleStatus is the monitor's latest view of the module's on-chain standing.
type ModuleStatus struct {
	BlockNumber   uint64   `json:"blockNumber"`
	ModuleEnabled bool     `json:"moduleEnabled"`
	Owners        []string `json:"owners"`
	Threshold     uint64   `json:"threshold"`
	Balance       string   `json:"balance"`
	CheckedAt     int64    `json:"checkedAt"`
	Error         string   `json:"error,omitempty"`
}
