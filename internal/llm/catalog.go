package llm

import (
	"slices"

	"github.com/hedgeline/engine/pkg/api"
)

// standardModels lists the hosted models surfaced to clients, grouped by
// provider
var standardModels = []*api.ModelEntry{
	{
		DisplayName: "[anthropic] claude-3.5-haiku",
		ModelName:   "claude-3-5-haiku-latest",
		Provider:    api.ProviderAnthropic,
	},
	{
		DisplayName: "[anthropic] claude-3.5-sonnet",
		ModelName:   "claude-3-5-sonnet-latest",
		Provider:    api.ProviderAnthropic,
	},
	{
		DisplayName: "[anthropic] claude-3-opus",
		ModelName:   "claude-3-opus-20240229",
		Provider:    api.ProviderAnthropic,
	},
	{
		DisplayName: "[deepseek] deepseek-coder",
		ModelName:   "deepseek-coder",
		Provider:    api.ProviderDeepSeek,
	},
	{
		DisplayName: "[deepseek] deepseek-chat",
		ModelName:   "deepseek-chat",
		Provider:    api.ProviderDeepSeek,
	},
	{
		DisplayName: "[gemini] gemini-1.5-flash",
		ModelName:   "gemini-1.5-flash-latest",
		Provider:    api.ProviderGemini,
	},
	{
		DisplayName: "[gemini] gemini-1.5-pro",
		ModelName:   "gemini-1.5-pro-latest",
		Provider:    api.ProviderGemini,
	},
	{
		DisplayName: "[groq] llama3-8b",
		ModelName:   "llama3-8b-8192",
		Provider:    api.ProviderGroq,
	},
	{
		DisplayName: "[groq] llama3-70b",
		ModelName:   "llama3-70b-8192",
		Provider:    api.ProviderGroq,
	},
	{
		DisplayName: "[groq] mixtral-8x7b",
		ModelName:   "mixtral-8x7b-32768",
		Provider:    api.ProviderGroq,
	},
	{
		DisplayName: "[openai] gpt-3.5-turbo",
		ModelName:   "gpt-3.5-turbo",
		Provider:    api.ProviderOpenAI,
	},
	{
		DisplayName: "[openai] gpt-4o",
		ModelName:   "gpt-4o",
		Provider:    api.ProviderOpenAI,
	},
	{
		DisplayName: "[openai] gpt-4-turbo",
		ModelName:   "gpt-4-turbo",
		Provider:    api.ProviderOpenAI,
	},
}

// ollamaModels lists models served by a local Ollama instance
var ollamaModels = []*api.ModelEntry{
	{
		DisplayName: "[google] gemma3 (4B)",
		ModelName:   "gemma3:4b",
		Provider:    api.ProviderOllama,
	},
	{
		DisplayName: "[alibaba] qwen3 (4B)",
		ModelName:   "qwen3:4b",
		Provider:    api.ProviderOllama,
	},
	{
		DisplayName: "[meta] llama3.1 (8B)",
		ModelName:   "llama3.1:latest",
		Provider:    api.ProviderOllama,
	},
	{
		DisplayName: "[google] gemma3 (12B)",
		ModelName:   "gemma3:12b",
		Provider:    api.ProviderOllama,
	},
	{
		DisplayName: "[mistral] mistral-small3.1 (24B)",
		ModelName:   "mistral-small3.1",
		Provider:    api.ProviderOllama,
	},
	{
		DisplayName: "[google] gemma3 (27B)",
		ModelName:   "gemma3:27b",
		Provider:    api.ProviderOllama,
	},
	{
		DisplayName: "[alibaba] qwen3 (30B-a3B)",
		ModelName:   "qwen3:30b-a3b",
		Provider:    api.ProviderOllama,
	},
	{
		DisplayName: "[meta] llama-3.3 (70B)",
		ModelName:   "llama3.3:70b-instruct-q4_0",
		Provider:    api.ProviderOllama,
	},
}

// Models returns the catalog of hosted models
func Models() []*api.ModelEntry {
	return slices.Clone(standardModels)
}

// OllamaModels returns the catalog of locally served models
func OllamaModels() []*api.ModelEntry {
	return slices.Clone(ollamaModels)
}

// Lookup finds a catalog entry by its model name, searching hosted models
// first and Ollama models second
func Lookup(modelName string) (*api.ModelEntry, bool) {
	for _, entry := range standardModels {
		if entry.ModelName == modelName {
			return entry, true
		}
	}
	for _, entry := range ollamaModels {
		if entry.ModelName == modelName {
			return entry, true
		}
	}
	return nil, false
}
