package models

const (
	CheckoutIdle                = "idle"
	CheckoutOpen                = "checkout_open"
	CheckoutVerificationPending = "verification_pending"
	CheckoutVerified            = "verified"
	CheckoutVerificationFailed  = "verification_failed"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED"
)

const (
	LocationGoa    = "Goa"
	LocationMumbai = "Mumbai"
	LocationDubai  = "Dubai"
)

const (
	// CurrencyINR is the only currency the checkout widget is opened with.
	CurrencyINR = "INR"

	// MinorUnitsPerMajor converts rupees to paise for the checkout amount.
	MinorUnitsPerMajor = 100

	// DefaultDraftTTL время жизни черновика бронирования в Redis
	DefaultDraftTTL = 24 * 60 * 60 // 24 часа в секундах

	// CatalogCacheTTL время жизни кэша каталога яхт
	CatalogCacheTTL = 5 * 60 // 5 минут в секундах

	// RateLimitRPS default per-client request rate for the gateway
	RateLimitRPS = 10

	// RateLimitBurst default burst for the gateway limiter
	RateLimitBurst = 20
)

const (
	RedirectPaymentSuccess = "/payment-success"
	RedirectPaymentFailed  = "/payment-failed"
)
