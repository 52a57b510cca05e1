// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside agentkit.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Request structured (JSON schema constrained) answers uniformly
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement the Model interface from
// this package so the execution engine remains decoupled from vendor SDKs.
package model
