// Package llm provides an OpenAI-compatible chat completion client used by
// every pipeline stage.
//
// # Requests
//
// Client.Generate sends one user message. When Request.Image is set the
// message becomes a multipart content array holding the prompt text and a
// base64 data URI. ShapeJSON asks the service for a single JSON object via
// response_format, and Request.MaxOutputTokens is forwarded as
// max_completion_tokens.
//
// # Usage
//
// Response carries prompt and completion token counts from the usage block.
// Services that omit usage yield zero counts instead of an error.
//
// # Retry Behaviour
//
// The client makes a single attempt by default. WithRetryMaxAttempts enables
// retries on HTTP 408/429/5xx, empty content, and network timeouts with
// exponential backoff (base 1s, max 10s). Context cancellation aborts retries
// immediately.
//
// # Decoding
//
// DecodeLLMJSON tolerates code fences and surrounding prose when a model wraps
// its JSON answer.
package llm
