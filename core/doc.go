// Package core provides the foundational domain types shared by every
// agentkit package:
//
//   - AgentConfig and its enums (Capability, AgentType) plus WorkflowConfig
//   - Overrides, the field-level patch applied on top of a base configuration
//   - Content / Part, the provider-neutral message representation
//   - Result and Invocable, the uniform call surface of agents
//   - the error taxonomy (sentinels plus typed errors with context)
//   - Validate, the declarative configuration validator
//
// The package holds no process state. Registries, routing tables and traces
// live in their own packages and are injected into the façade.
package core
