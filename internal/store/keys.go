package store

// Per-user keys.
const (
	KeyToken                = "token"
	KeyRefreshToken         = "refresh_token"
	KeyTokenExpiresAt       = "token_expires_at"
	KeyUserID               = "user_id"
	KeyUserName             = "user_name"
	KeyOAuthState           = "oauth_state"
	KeyOAuthOrigin          = "oauth_origin"
	KeyFileIDsToSend        = "file_ids_to_send_after_oauth"
	KeyCurrentDirAfterOAuth = "current_dir_after_oauth"
	KeyWebhooksEnabled      = "webhooks_enabled"
	KeyWebhookSecret        = "webhook_secret"
	KeyCalendarCreatedHook  = "calendar_event_created_webhook"
	KeyCalendarUpdatedHook  = "calendar_event_updated_webhook"
	KeyDailySummaryHook     = "daily_summary_webhook"
	KeyImminentEventsHook   = "imminent_events_webhook"
	KeyLastDailySummaryDate = "last_daily_summary_date"
)

// App-wide keys.
const (
	AppKeyClientID         = "client_id"
	AppKeyClientSecret     = "client_secret"
	AppKeyOAuthInstanceURL = "oauth_instance_url"
	AppKeyUsePopup         = "use_popup"
)
