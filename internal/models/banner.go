package models

// BannerState is the rotating set of alert/status messages.
// Messages is never empty and ActiveIndex is always a valid index into it.
type BannerState struct {
	Messages    []string `json:"messages"`
	ActiveIndex int      `json:"active_index"`
}

// Active returns the message currently on display.
func (b BannerState) Active() string {
	if len(b.Messages) == 0 {
		return ""
	}
	return b.Messages[b.ActiveIndex]
}
