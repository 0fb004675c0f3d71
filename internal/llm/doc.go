// Package llm produces AI diagnoses of espresso and filter extractions.
// It supports Gemini and OpenAI-compatible providers, with retry logic, rate
// limiting, and response caching layered on top by the Analyzer.
package llm
