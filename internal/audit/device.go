package audit

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel condenses a User-Agent header into "Browser on OS" for the
// audit trail. Station software that sends a bare product token is kept as is.
func DeviceLabel(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	default:
		return userAgent
	}
}
