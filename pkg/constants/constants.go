package constants

import "time"

const (
	APP_NAME    = "Multi-Purpose Chatbot"
	APP_VERSION = "1.0.0"

	DEFAULT_USER_ID     = "default_user"
	DEFAULT_APPLICATION = "customer_support"
	DEFAULT_TAG         = "general"

	CONFIDENCE_THRESHOLD = 0.3
	FALLBACK_CONFIDENCE  = 0.1
	MAX_MESSAGE_LENGTH   = 1000

	RATE_LIMIT_WINDOW = time.Minute

	CHANNEL_SIZE  = 100
	WS_WRITE_WAIT = 10 * time.Second
)

// 对外返回的错误提示
const (
	SYSTEM_ERROR       = "Sorry, I'm having trouble processing your request right now."
	NO_JSON_DATA       = "No JSON data provided"
	NO_MESSAGE         = "No message provided"
	MESSAGE_TOO_LONG   = "Message is too long"
	RATE_LIMITED       = "Too many requests, please slow down"
	TRAINING_FAILED    = "Failed to add training data. Please check the inputs."
	TRAINING_SUCCEEDED = "Training data added"
)
