// Package file keeps user-editable state under ~/.sercha-context: settings in
// config.toml (ConfigStore) and LLM prompt templates in prompts/ (PromptStore).
package file
