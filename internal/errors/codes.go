// Package errors provides the structured error handling used across the
// release pipeline. It extends Go's standard error handling with string-based
// error codes, context preservation, and wrapping helpers that keep the full
// cause chain intact.
package errors

// ErrorCode represents a specific error condition in the release pipeline.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Configuration errors.

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeConfigLoadFailed indicates the configuration file could not be loaded or parsed.
	CodeConfigLoadFailed ErrorCode = "CONFIG_LOAD_FAILED"

	// CodeConfigDecodeFailed indicates the configuration could not be decoded into its schema.
	CodeConfigDecodeFailed ErrorCode = "CONFIG_DECODE_FAILED"

	// CodeSchemaIncompatible indicates the configuration declares an unsupported schema version.
	CodeSchemaIncompatible ErrorCode = "SCHEMA_INCOMPATIBLE"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a requested resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Pipeline errors.

	// CodeExecutionFailed indicates a pipeline step command failed.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// CodeBuildFailed indicates a build operation failed.
	CodeBuildFailed ErrorCode = "BUILD_FAILED"

	// CodePublishFailed indicates a publish operation failed.
	CodePublishFailed ErrorCode = "PUBLISH_FAILED"

	// CodeTriggerFailed indicates the downstream deployment trigger failed.
	CodeTriggerFailed ErrorCode = "TRIGGER_FAILED"

	// Infrastructure errors.

	// CodeStorageFailed indicates an artifact or cache storage operation failed.
	CodeStorageFailed ErrorCode = "STORAGE_FAILED"

	// CodeSecretResolveFailed indicates a secret reference could not be resolved.
	CodeSecretResolveFailed ErrorCode = "SECRET_RESOLVE_FAILED"

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// System errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
