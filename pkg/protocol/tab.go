package protocol

import "time"

// TabInfo describes a tab connected to the coordinator.
type TabInfo struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ConnectedAt time.Time `json:"connectedAt"`
	Active      bool      `json:"active"`
}
