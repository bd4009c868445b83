// Package telegram bridges the monitor to a Telegram chat: outbound alerts
// and inbound operator commands.
package telegram

import "github.com/user/birdwatch/internal/types"

// Compile-time interface compliance check.
var _ types.AlertChannel = (*Adapter)(nil)
