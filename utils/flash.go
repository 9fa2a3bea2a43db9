package utils

// Flash levels, matching the front-end alert classes.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// Flash is a one-shot user-facing message carried across a redirect.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
