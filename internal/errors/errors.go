package errors

import (
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context.
// Configuration errors are fatal: they abort construction before any
// network call is made.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	_, ok := err.(ConfigError)
	return ok
}

// ServiceError enhances Azure service errors with context
func ServiceError(service string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", service, operation),
		Suggestion: getServiceSuggestion(service, err),
		Err:        err,
	}
}

// getServiceSuggestion returns helpful suggestions based on service and error
func getServiceSuggestion(service string, err error) string {
	errStr := strings.ToLower(err.Error())

	switch service {
	case "servicebus":
		if strings.Contains(errStr, "forbidden") || strings.Contains(errStr, "authorization") {
			return "Check that the identity has 'Azure Service Bus Data Owner' or a management role on the namespace"
		}
		if strings.Contains(errStr, "notfound") || strings.Contains(errStr, "404") {
			return "Verify the resource group, namespace, and authorization rule names. Rule names are case-sensitive"
		}
		if strings.Contains(errStr, "subscription") {
			return "Check that AZURE_SUBSCRIPTION_ID is set to the subscription containing the namespace"
		}

	case "keyvault":
		if strings.Contains(errStr, "forbidden") || strings.Contains(errStr, "access denied") {
			return "Check Key Vault access policies: 'Set' and 'List' permissions are required for secrets"
		}
		if strings.Contains(errStr, "secretnotfound") || strings.Contains(errStr, "404") {
			return "Verify the secret name exists in the Key Vault. Secret names are case-sensitive"
		}
		if strings.Contains(errStr, "vault not found") || strings.Contains(errStr, "keyvaulterror") {
			return "Check the vault URL format and that the Key Vault exists"
		}
	}

	switch {
	case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "401"):
		return "Check authentication: verify managed identity, service principal, or Azure CLI login"
	case strings.Contains(errStr, "throttled") || strings.Contains(errStr, "429"):
		return "Request was throttled. Consider adding exponential backoff or reducing request rate"
	case strings.Contains(errStr, "tenant"):
		return "Check that the tenant ID is correct and the application is registered"
	case strings.Contains(errStr, "timeout"):
		return "The operation timed out. Check your network connection and try again"
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "Unable to connect. Check your network and endpoint configuration"
	}

	return "Check Azure credentials, resource names, and access policies"
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
