package cmd

// Exit codes for hostfetch CLI
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitFailure indicates a failed expectation or a failure with no more specific code
	ExitFailure = 1

	// ExitInvalidRequest indicates the request was rejected before sending
	ExitInvalidRequest = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitInternalError indicates the response could not be serialized
	ExitInternalError = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
