package session

import "strings"

// DeviceInfo captures coarse client fingerprinting recorded at login and
// refreshed by the heartbeat. Informational only; nothing authenticates
// against it.
type DeviceInfo struct {
	UserAgent string `json:"userAgent,omitempty"`
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	Device    string `json:"device,omitempty"`
	IsMobile  bool   `json:"isMobile,omitempty"`
}

// Session is one server-side login record. It is stored as an opaque JSON
// blob; timestamps are Unix seconds.
type Session struct {
	SessionID  string      `json:"sessionId"`
	UserID     string      `json:"userId"`
	Email      string      `json:"email,omitempty"`
	Role       string      `json:"role,omitempty"`
	CreatedAt  int64       `json:"createdAt"`
	LastAccess int64       `json:"lastAccess"`
	ExpiresAt  int64       `json:"expiresAt"`
	DeviceInfo *DeviceInfo `json:"deviceInfo,omitempty"`
	IPAddress  string      `json:"ipAddress,omitempty"`
	IsActive   bool        `json:"isActive"`
	LoginCount int         `json:"loginCount,omitempty"`
}

// DetectDevice derives [DeviceInfo] from a raw User-Agent header.
// Best-effort substring matching; unknown agents report "Unknown".
func DetectDevice(userAgent string) DeviceInfo {
	if userAgent == "" {
		return DeviceInfo{UserAgent: "Unknown", Browser: "Unknown", OS: "Unknown", Device: "Desktop"}
	}

	info := DeviceInfo{UserAgent: userAgent, Browser: "Unknown", OS: "Unknown", Device: "Desktop"}

	switch {
	case strings.Contains(userAgent, "Edge"):
		info.Browser = "Edge"
	case strings.Contains(userAgent, "Chrome"):
		info.Browser = "Chrome"
	case strings.Contains(userAgent, "Firefox"):
		info.Browser = "Firefox"
	case strings.Contains(userAgent, "Safari"):
		info.Browser = "Safari"
	}

	// iPhone UAs also contain "Mac OS X", so mobile platforms go first.
	switch {
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"):
		info.OS = "iOS"
	case strings.Contains(userAgent, "Android"):
		info.OS = "Android"
	case strings.Contains(userAgent, "Windows"):
		info.OS = "Windows"
	case strings.Contains(userAgent, "Mac"):
		info.OS = "macOS"
	case strings.Contains(userAgent, "Linux"):
		info.OS = "Linux"
	}

	switch {
	case strings.Contains(userAgent, "Tablet"), strings.Contains(userAgent, "iPad"):
		info.Device = "Tablet"
	case strings.Contains(userAgent, "Mobile"):
		info.Device = "Mobile"
	}
	info.IsMobile = info.Device != "Desktop"

	return info
}
