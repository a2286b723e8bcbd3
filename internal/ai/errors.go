package ai

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Standard errors for model invocation
var (
	// ErrUnsupportedModel is returned when an unsupported model type is requested
	ErrUnsupportedModel = errors.New("unsupported model type")

	// ErrInvalidConfiguration is returned when the model configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid model configuration")

	// ErrAPICallFailed is returned when the API call to the model fails
	ErrAPICallFailed = errors.New("API call to model failed")

	// ErrContextDeadlineExceeded is returned when the context deadline is exceeded
	ErrContextDeadlineExceeded = errors.New("context deadline exceeded")

	// ErrModelUnavailable is returned when the model is unavailable
	ErrModelUnavailable = errors.New("model temporarily unavailable")

	// ErrRateLimitExceeded is returned when the API rate limit is exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrAccessDenied is returned when the caller is not allowed to invoke the model or agent
	ErrAccessDenied = errors.New("access denied")
)

// classifyAWSError maps an AWS service error onto the package's sentinel errors.
// The original error stays in the chain.
func classifyAWSError(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w: %w", op, ErrAPICallFailed, err)
	}

	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
		return fmt.Errorf("%s: %w: %w", op, ErrRateLimitExceeded, err)
	case "ServiceUnavailableException", "ModelNotReadyException", "ModelTimeoutException", "DependencyFailedException":
		return fmt.Errorf("%s: %w: %w", op, ErrModelUnavailable, err)
	case "AccessDeniedException", "UnrecognizedClientException":
		return fmt.Errorf("%s: %w: %w", op, ErrAccessDenied, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrAPICallFailed, err)
	}
}
