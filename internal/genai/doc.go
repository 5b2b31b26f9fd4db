// Package genai talks to the external text generation backend.
//
// The backend is a black box that maps a single prompt string plus
// generation parameters (temperature, max output tokens) to free text.
// This package owns exactly the translation between the structured turn
// history and that boundary: prompt rendering, request encoding, response
// decoding, and error normalization. Everything backend-side, from
// transport failures and quota errors to empty candidates, surfaces as
// a wrapped ErrGeneration.
//
// Two modes are provided: Generate returns the complete reply, and
// GenerateStream yields chunks over a channel as they arrive. The stream
// is one-shot and non-restartable; consumers needing the full text
// concatenate chunks in order.
package genai
