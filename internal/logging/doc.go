// Package logging provides structured logging utilities for dealscout.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Logger construction from configuration (JSON or text handler)
//   - PII sanitization (sender addresses are hashed, tokens are masked)
//   - Consistent attribute naming across the pipeline
//   - Bounded payload logging for model replies and HTTP bodies
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "pipeline.message")
//	logger.Info("message logged",
//	    logging.MessageID(msg.ID),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("processing message",
//	    logging.Sender(msg.From))
//
// # Security Considerations
//
//   - Sender addresses are hashed to prevent PII leakage while allowing correlation
//   - API keys and tokens are never logged directly
package logging
