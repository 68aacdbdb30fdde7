package constants

import "time"

const (
	DefaultRequestTimeout = 30 * time.Second

	ContextIdentity = "identity"

	ScopeTokenAccess = "access"

	RedisKeyPaymentCallback = "booking:payment-callback:"
	RedisKeyUnreadCount     = "notification:unread:"

	PaymentCallbackLockTTL = 30 * time.Second
	UnreadCountTTL         = 5 * time.Minute

	MaxBookingNotesLength = 1000
	DefaultTimezone       = "UTC"
)
