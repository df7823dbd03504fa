package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// HumanDuration renders d the way notices show it, e.g. "10 seconds".
func HumanDuration(d time.Duration) string {
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now, now.Add(d), "", ""))
}

// NoticeColor reads the embed color for kind from defaultColors, 0 when
// unset or not a hex color.
func NoticeColor(cfg Config, kind NoticeKind) int {
	hex := cfg.String("defaultColors."+kind.String(), "")
	c, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(c)
}
